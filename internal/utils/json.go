package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape marshals gateway responses without HTML escaping, so legacy
// HTML fragments and field labels such as "Qty <= 0" reach the browser as
// written instead of as \u003c sequences.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encode terminates with a newline the handlers do not want.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
