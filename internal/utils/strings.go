// Package utils provides common utility functions.
package utils

import "strings"

// MaskKey masks a credential for safe logging (shows first 8 and last 4 chars).
// Bearer tokens and CSRF tokens must only be logged through this.
func MaskKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// MaskCookie keeps cookie names and masks their values, e.g.
// "JSESSIONID=abc; lang=en" becomes "JSESSIONID=****; lang=****".
func MaskCookie(header string) string {
	if strings.TrimSpace(header) == "" {
		return "(empty)"
	}
	parts := strings.Split(header, ";")
	for i, p := range parts {
		name, _, _ := strings.Cut(strings.TrimSpace(p), "=")
		parts[i] = name + "=****"
	}
	return strings.Join(parts, "; ")
}
