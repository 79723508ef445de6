// Proxy handler - the per-request state machine.
//
// FLOW:
//  1. Bearer token required (401 without contacting the legacy server)
//  2. Session artifacts looked up by token (absent is not an error)
//  3. Target URL: {apiBase}/{slug}?{query}
//  4. GET on non-mutation paths goes through the cache, everything else bypasses it
//  5. Forward with Authorization, Accept, Cookie, X-CSRF-Token
//  6. Non-2xx: legacy status + body surfaced to the caller
//  7. Binary streamed, HTML decoded + rewritten, JSON validated
//  8. Network or parse failure: 500 "failed to reach legacy server"
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/etendo/erp-gateway/internal/auth"
	"github.com/etendo/erp-gateway/internal/cache"
	"github.com/etendo/erp-gateway/internal/config"
	"github.com/etendo/erp-gateway/internal/content"
	"github.com/etendo/erp-gateway/internal/monitoring"
	"github.com/etendo/erp-gateway/internal/rewrite"
	"github.com/etendo/erp-gateway/internal/session"
	"github.com/etendo/erp-gateway/internal/utils"
)

var errBodyTooLarge = errors.New("body exceeds size limit")

// handleProxy forwards /api/erp/{slug} to the legacy server.
func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := getRequestID(r)
	w.Header().Set(HeaderRequestID, requestID)

	if !isProxiedMethod(r.Method) {
		w.Header().Set("Allow", "GET, POST, PUT, PATCH, DELETE")
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}
	slug := extractSlug(r)
	if slug == "" {
		writeError(w, http.StatusNotFound, msgUnknownResource)
		return
	}

	ev := &monitoring.RequestEvent{
		RequestID: requestID,
		Timestamp: startTime,
		Method:    r.Method,
		Slug:      slug,
		ClientIP:  clientIP(r),
		Cache:     monitoring.CacheBypass,
	}
	defer g.recordRequest(ev, startTime)

	fail := func(pe *ProxyError) {
		ev.StatusCode = pe.Status
		ev.ErrorKind = string(pe.Kind)
		ev.Error = pe.Error()
		g.metrics.RecordError(string(pe.Kind))
		writeProxyError(w, pe)
	}

	// 1. Bearer token
	token, ok := auth.FromRequest(r)
	if !ok {
		fail(authenticationMissing())
		return
	}

	req := &proxyRequest{
		Method:      r.Method,
		Slug:        slug,
		RawQuery:    r.URL.RawQuery,
		ContentType: r.Header.Get("Content-Type"),
		Token:       token,
		RequestID:   requestID,
	}
	if r.Method != http.MethodGet && r.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize))
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				ev.StatusCode = http.StatusRequestEntityTooLarge
				writeError(w, http.StatusRequestEntityTooLarge, msgRequestBodyTooBig)
			} else {
				ev.StatusCode = http.StatusBadRequest
				writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
			}
			ev.Error = err.Error()
			return
		}
		req.Body = body
	}
	ev.RequestBodySize = len(req.Body)

	// 2. Session artifacts
	sess, hasSession, err := g.sessions.Get(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("session lookup failed, forwarding without session")
		hasSession = false
	}
	ev.SessionAttached = hasSession

	ctx, cancel, release := g.legacyContext(r.Context())
	defer cancel()

	// 5-8. Forward and classify. passthrough carries bodies that are written
	// as a response rather than stored in an entry (binary, HTML).
	var passthrough *http.Response
	fetch := func(ctx context.Context) (*cache.Entry, error) {
		fwdStart := time.Now()
		resp, err := g.forward(ctx, req, sess, hasSession)
		g.metrics.ObserveUpstream(time.Since(fwdStart))
		ev.ForwardLatencyMs = time.Since(fwdStart).Milliseconds()
		if err != nil {
			return nil, networkFailure(err)
		}
		entry, pt, err := g.readResponse(resp, requestID)
		if pt == resp {
			// Streamed binary body: from here on only the caller bounds it.
			release()
		}
		passthrough = pt
		return entry, err
	}

	// 4. Cache decision
	cacheStatus := monitoring.CacheBypass
	var entry *cache.Entry
	if g.cache.Enabled() && cache.Cacheable(r.Method, slug) {
		var hit bool
		key := cache.NewKey(token, r.Method, slug, r.URL.RawQuery, nil)
		entry, hit, err = g.cache.GetOrFetch(ctx, key, fetch)
		cacheStatus = monitoring.CacheMiss
		if hit {
			cacheStatus = monitoring.CacheHit
		}
	} else {
		entry, err = fetch(ctx)
	}
	ev.Cache = cacheStatus
	g.metrics.RecordCache(cacheStatus)
	w.Header().Set(HeaderCache, string(cacheStatus))

	if err != nil {
		pe := asProxyError(err)
		if pe.Kind == ErrUpstreamFailure {
			log.Error().
				Str("request_id", requestID).
				Int("status", pe.Status).
				Str("slug", slug).
				Str("response", truncateLogValue(string(pe.Details), config.MaxErrorBodyLogLen)).
				Msg("legacy error response")
		} else {
			log.Error().Err(pe.Err).Str("request_id", requestID).Str("slug", slug).Str("kind", string(pe.Kind)).Msg("legacy call failed")
		}
		fail(pe)
		return
	}

	if passthrough != nil {
		ev.ContentKind = string(content.Classify(passthrough.Header.Get("Content-Type")))
		g.writeResponse(w, passthrough, ev)
		return
	}
	ev.ContentKind = string(content.Classify(entry.ContentType))
	writeEntry(w, entry, ev)
}

// legacyContext bounds the outbound call by legacy.timeout. The parent is the
// inbound request context, so a disconnecting caller aborts the legacy call.
// release stops the timeout once the headers are in and the body is streamed
// to the caller; buffered bodies stay under the timeout.
func (g *Gateway) legacyContext(parent context.Context) (ctx context.Context, cancel context.CancelFunc, release func()) {
	ctx, cancelCause := context.WithCancelCause(parent)
	timeout := g.config.Legacy.Timeout
	if timeout <= 0 {
		return ctx, func() { cancelCause(nil) }, func() {}
	}
	timer := time.AfterFunc(timeout, func() {
		cancelCause(fmt.Errorf("legacy timeout after %s: %w", timeout, context.DeadlineExceeded))
	})
	cancel = func() {
		timer.Stop()
		cancelCause(nil)
	}
	return ctx, cancel, func() { timer.Stop() }
}

// forward issues the outbound legacy call.
func (g *Gateway) forward(ctx context.Context, req *proxyRequest, sess session.Entry, hasSession bool) (*http.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	target := g.targetURL(req)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build legacy request: %w", err)
	}

	httpReq.Header.Set(auth.HeaderAuthorization, "Bearer "+req.Token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, req.RequestID)
	if len(req.Body) > 0 && req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if hasSession {
		if sess.CookieHeader != "" {
			httpReq.Header.Set(auth.HeaderCookie, sess.CookieHeader)
		}
		if isMutatingMethod(req.Method) && sess.CSRFToken != "" {
			httpReq.Header.Set(auth.HeaderCSRFToken, sess.CSRFToken)
		}
	}

	log.Debug().
		Str("request_id", req.RequestID).
		Str("method", req.Method).
		Str("target", target).
		Str("authorization", utils.MaskKey(req.Token)).
		Str("cookie", utils.MaskCookie(sess.CookieHeader)).
		Bool("session", hasSession).
		Msg("forwarding request")

	return g.httpClient.Do(httpReq)
}

// readResponse classifies a legacy response. Successful binary and HTML
// bodies come back as a response to write; JSON and text as an entry.
func (g *Gateway) readResponse(resp *http.Response, requestID string) (*cache.Entry, *http.Response, error) {
	ct := resp.Header.Get("Content-Type")
	kind := content.Classify(ct)
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	if success && kind == content.KindBinary {
		return &cache.Entry{Status: resp.StatusCode, ContentType: ct, NoStore: true}, resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, err := readLimited(resp.Body, config.MaxResponseSize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return nil, nil, malformedResponse(err)
		}
		return nil, nil, networkFailure(fmt.Errorf("read legacy body: %w", err))
	}

	if !success {
		return nil, nil, upstreamFailure(resp, body)
	}

	switch kind {
	case content.KindHTML:
		charset := content.DetectCharset(ct)
		html, err := content.DecodeToUTF8(body, charset)
		if err != nil {
			return nil, nil, malformedResponse(err)
		}
		log.Debug().Str("request_id", requestID).Str("charset", charset).Int("bytes", len(body)).Msg("rewriting legacy html")

		// The body is re-encoded as UTF-8, so the legacy type no longer applies.
		src := &http.Response{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Proto:      resp.Proto,
			ProtoMajor: resp.ProtoMajor,
			ProtoMinor: resp.ProtoMinor,
			Header:     resp.Header.Clone(),
		}
		src.Header.Del("Content-Type")
		out := rewrite.NewHTMLResponse(g.rewriter.Rewrite(html), src)
		return &cache.Entry{Status: out.StatusCode, ContentType: rewrite.HTMLContentType, NoStore: true}, out, nil

	case content.KindJSON:
		if len(bytes.TrimSpace(body)) > 0 && !gjson.ValidBytes(body) {
			return nil, nil, malformedResponse(fmt.Errorf("legacy body is not valid JSON (%d bytes, %q)", len(body), ct))
		}
		if ct == "" {
			ct = "application/json"
		}
		return &cache.Entry{Status: resp.StatusCode, ContentType: ct, Body: body}, nil, nil

	default:
		return &cache.Entry{Status: resp.StatusCode, ContentType: ct, Body: body, NoStore: true}, nil, nil
	}
}

// readLimited reads at most limit bytes and fails with errBodyTooLarge beyond that.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// writeResponse streams a legacy (or rewritten) response to the client.
func (g *Gateway) writeResponse(w http.ResponseWriter, resp *http.Response, ev *monitoring.RequestEvent) {
	defer func() { _ = resp.Body.Close() }()

	requestID, cacheStatus := w.Header().Get(HeaderRequestID), w.Header().Get(HeaderCache)
	copyHeaders(w, resp.Header)
	w.Header().Set(HeaderRequestID, requestID)
	w.Header().Set(HeaderCache, cacheStatus)
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	ev.StatusCode = resp.StatusCode
	ev.ResponseBodySize = n
	if err != nil {
		log.Warn().Err(err).Str("request_id", ev.RequestID).Int64("bytes", n).Msg("response stream interrupted")
	}
}

// writeEntry writes a JSON or text entry. Entries may be shared with the
// cache and are never modified.
func writeEntry(w http.ResponseWriter, entry *cache.Entry, ev *monitoring.RequestEvent) {
	for k, v := range entry.Header() {
		w.Header()[k] = v
	}
	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	bodyAllowed := status != http.StatusNoContent && status != http.StatusNotModified
	if bodyAllowed {
		w.Header().Set("Content-Length", strconv.Itoa(len(entry.Body)))
	}
	w.WriteHeader(status)
	if bodyAllowed {
		_, _ = w.Write(entry.Body)
	}
	ev.StatusCode = status
	ev.ResponseBodySize = int64(len(entry.Body))
}

// recordRequest logs, counts and records one finished proxied call.
func (g *Gateway) recordRequest(ev *monitoring.RequestEvent, startTime time.Time) {
	total := time.Since(startTime)
	ev.TotalLatencyMs = total.Milliseconds()
	ev.Success = ev.ErrorKind == "" && ev.StatusCode < 400

	g.metrics.RecordRequest(ev.Method, ev.StatusCode, ev.Cache, total)
	g.tracker.RecordRequest(ev)

	log.Info().
		Str("request_id", ev.RequestID).
		Str("method", ev.Method).
		Str("slug", ev.Slug).
		Int("status", ev.StatusCode).
		Str("cache", string(ev.Cache)).
		Str("kind", ev.ContentKind).
		Bool("session", ev.SessionAttached).
		Dur("latency", total).
		Msg("erp request")
}

// truncateLogValue shortens value for log output.
func truncateLogValue(value string, maxLen int) string {
	if maxLen <= 0 || len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "...(truncated)"
}
