// Request utilities - route parsing, target URL building and header policy.
package gateway

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Routes.
const (
	RouteERP     = "/api/erp/"
	RouteSession = "/api/erp-session"
)

// Headers set by the gateway.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderCache     = "X-Cache"
)

// proxyRequest is the normalized view of one inbound ERP call.
type proxyRequest struct {
	Method      string
	Slug        string
	RawQuery    string
	Body        []byte
	ContentType string
	Token       string
	RequestID   string
}

// extractSlug returns the path below RouteERP with empty segments dropped.
// The escaped form is used so encoded characters reach the legacy server as sent.
func extractSlug(r *http.Request) string {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), RouteERP)
	parts := strings.Split(rest, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, "/")
}

// isProxiedMethod reports whether method may be forwarded.
func isProxiedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isMutatingMethod reports whether method changes legacy state.
func isMutatingMethod(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// targetURL builds {apiBase}/{slug}; the query string is forwarded verbatim for every verb.
func (g *Gateway) targetURL(req *proxyRequest) string {
	u := g.apiBase + "/" + req.Slug
	if req.RawQuery != "" {
		u += "?" + req.RawQuery
	}
	return u
}

// getRequestID gets or generates a request ID.
func getRequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderRequestID)); id != "" {
		return id
	}
	return uuid.New().String()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Hop-by-hop headers plus Set-Cookie: legacy cookies belong to the
// gateway-held session, never to the browser.
var skippedResponseHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Set-Cookie":          true,
}

// copyHeaders copies legacy response headers that are safe to expose.
func copyHeaders(w http.ResponseWriter, src http.Header) {
	for k, v := range src {
		if skippedResponseHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		w.Header()[k] = v
	}
}
