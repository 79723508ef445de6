// Package auth extracts the modern-side credential from inbound requests.
//
// Browser clients authenticate to the gateway with a stateless bearer token.
// The token doubles as the identity key for the legacy session store and for
// per-user cache isolation.
package auth

import (
	"context"
	"net/http"
	"strings"
)

const (
	// HeaderAuthorization is the standard Authorization header.
	HeaderAuthorization = "Authorization"

	// HeaderCSRFToken carries the legacy CSRF token on mutating calls.
	HeaderCSRFToken = "X-CSRF-Token"

	// HeaderCookie carries the legacy session cookie.
	HeaderCookie = "Cookie"

	bearerScheme = "bearer"
)

// BearerToken extracts the token from an Authorization header value.
// Only the Bearer scheme is accepted (case-insensitive); anything else,
// including a bare token, yields "".
func BearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// FromRequest returns the bearer token of r and whether one was present.
func FromRequest(r *http.Request) (string, bool) {
	token := BearerToken(r.Header.Get(HeaderAuthorization))
	return token, token != ""
}

type tokenKey struct{}

// WithToken stores token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// RequireBearer rejects requests without a bearer token using onMissing and
// otherwise stores the token in the request context.
func RequireBearer(onMissing http.HandlerFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := FromRequest(r)
		if !ok {
			onMissing(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
	})
}
