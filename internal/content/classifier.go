// Package content classifies legacy ERP responses by their Content-Type.
//
// DESIGN: Pure, side-effect-free helpers used by the gateway to decide how a
// response body is handled:
//   - DetectCharset():       charset parameter, Latin-1 when absent
//   - IsBinaryContentType(): streamed through untouched
//   - Classify():            binary / HTML / JSON / other text
//   - DecodeToUTF8():        decode a textual body using its charset
//
// Legacy endpoints are Tomcat-hosted JSP/servlet code whose default servlet
// encoding is ISO-8859-1, not UTF-8.
package content

import (
	"strings"
)

// DefaultCharset is the servlet container default used when no charset is declared.
const DefaultCharset = "iso-8859-1"

// Kind is the handling class of a response body.
type Kind string

const (
	KindBinary Kind = "binary"
	KindHTML   Kind = "html"
	KindJSON   Kind = "json"
	KindText   Kind = "text"
)

var binaryTypes = map[string]bool{
	"application/octet-stream": true,
	"application/zip":          true,
	"application/pdf":          true,
}

var binaryPrefixes = []string{"image/", "video/", "audio/"}

// DetectCharset extracts the charset parameter from a Content-Type value.
// Matching is case-insensitive and position-independent. The returned value
// is lowercased with surrounding quotes removed.
func DetectCharset(contentType string) string {
	lower := strings.ToLower(contentType)
	idx := strings.Index(lower, "charset=")
	if idx < 0 {
		return DefaultCharset
	}
	value := lower[idx+len("charset="):]
	if end := strings.IndexAny(value, "; \t,"); end >= 0 {
		value = value[:end]
	}
	value = strings.Trim(value, `"'`)
	if value == "" {
		return DefaultCharset
	}
	return value
}

// MediaType returns the lowercased type/subtype without parameters.
func MediaType(contentType string) string {
	mt := contentType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsBinaryContentType reports whether the body must be passed through
// without charset or HTML processing. JSON and HTML are never binary.
func IsBinaryContentType(contentType string) bool {
	mt := MediaType(contentType)
	if mt == "" {
		return false
	}
	if binaryTypes[mt] {
		return true
	}
	for _, prefix := range binaryPrefixes {
		if strings.HasPrefix(mt, prefix) {
			return true
		}
	}
	return false
}

// IsHTML reports whether the declared type is an HTML document.
func IsHTML(contentType string) bool {
	mt := MediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// IsJSON reports whether the declared type is JSON (including +json suffixes).
func IsJSON(contentType string) bool {
	mt := MediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// Classify maps a Content-Type to its handling class.
// An absent Content-Type is treated as JSON, the legacy API's default payload.
func Classify(contentType string) Kind {
	switch {
	case IsBinaryContentType(contentType):
		return KindBinary
	case IsHTML(contentType):
		return KindHTML
	case IsJSON(contentType), MediaType(contentType) == "":
		return KindJSON
	default:
		return KindText
	}
}
