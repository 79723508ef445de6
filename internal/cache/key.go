package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
)

// tokenHashLength is the number of hex characters of the token digest kept in keys.
const tokenHashLength = 32

// mutationMarkers flag paths that imply a side effect regardless of verb.
var mutationMarkers = []string{"create", "update", "delete"}

// Key identifies one cached resource for one user.
type Key struct {
	Token  string
	Method string
	Path   string
	Query  string // normalized: parameters sorted by name
	Body   string // hex digest of the request body, empty when none
}

// NewKey builds a key. The query is normalized so parameter order does not
// split the cache; the body, if any, is folded in as a digest.
func NewKey(token, method, path, rawQuery string, body []byte) Key {
	k := Key{
		Token:  token,
		Method: strings.ToUpper(method),
		Path:   path,
		Query:  normalizeQuery(rawQuery),
	}
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		k.Body = hex.EncodeToString(sum[:])
	}
	return k
}

// String renders the storage key. The bearer token is hashed so it never
// appears in backend keyspaces.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Token))
	var b strings.Builder
	b.WriteString("erp:")
	b.WriteString(hex.EncodeToString(sum[:])[:tokenHashLength])
	b.WriteByte(':')
	b.WriteString(k.Method)
	b.WriteByte(':')
	b.WriteString(k.Path)
	if k.Query != "" {
		b.WriteByte('?')
		b.WriteString(k.Query)
	}
	if k.Body != "" {
		b.WriteByte('#')
		b.WriteString(k.Body)
	}
	return b.String()
}

// IsMutationPath reports whether path contains a mutation-indicating
// substring, compared case-insensitively on the percent-decoded path.
func IsMutationPath(path string) bool {
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	lower := strings.ToLower(path)
	for _, marker := range mutationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Cacheable reports whether a request may consult the cache at all:
// GET only, and never for mutation-flagged paths.
func Cacheable(method, path string) bool {
	return strings.EqualFold(method, http.MethodGet) && !IsMutationPath(path)
}

func normalizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	// Encode sorts by key; values keep their original order.
	return values.Encode()
}
