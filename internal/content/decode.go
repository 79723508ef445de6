package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeToUTF8 converts body from the given charset into a UTF-8 string.
// Unknown charset labels fall back to ISO-8859-1, which never fails to decode.
func DecodeToUTF8(body []byte, charset string) (string, error) {
	label := strings.ToLower(strings.TrimSpace(charset))
	if label == "utf-8" || label == "utf8" {
		if !utf8.Valid(body) {
			return strings.ToValidUTF8(string(body), "�"), nil
		}
		return string(body), nil
	}

	enc := lookupEncoding(label)
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", label, err)
	}
	return string(out), nil
}

func lookupEncoding(label string) encoding.Encoding {
	if label == "" {
		return charmap.ISO8859_1
	}
	enc, err := htmlindex.Get(label)
	if err != nil || enc == nil {
		return charmap.ISO8859_1
	}
	return enc
}
