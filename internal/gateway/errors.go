package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/etendo/erp-gateway/internal/monitoring"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind classifies a failed proxied call.
type ErrorKind string

const (
	ErrAuthenticationMissing ErrorKind = monitoring.ErrKindAuthenticationMissing
	ErrUpstreamFailure       ErrorKind = monitoring.ErrKindUpstreamFailure
	ErrNetworkFailure        ErrorKind = monitoring.ErrKindNetworkFailure
	ErrMalformedResponse     ErrorKind = monitoring.ErrKindMalformedResponse
)

const (
	msgMissingToken       = "missing bearer token"
	msgLegacyUnreachable  = "failed to reach legacy server"
	msgMethodNotAllowed   = "method not allowed"
	msgUnknownResource    = "no ERP resource specified"
	msgRequestBodyTooBig  = "request body too large"
	msgInvalidRequestBody = "invalid request body"
)

// ProxyError is a terminal failure of one proxied call. Message and Details
// are sent to the client; Err is logged only.
type ProxyError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Details []byte
	Err     error
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProxyError) Unwrap() error { return e.Err }

func authenticationMissing() *ProxyError {
	return &ProxyError{Kind: ErrAuthenticationMissing, Status: http.StatusUnauthorized, Message: msgMissingToken}
}

// upstreamFailure keeps the legacy status and body for the caller.
func upstreamFailure(resp *http.Response, body []byte) *ProxyError {
	return &ProxyError{
		Kind:    ErrUpstreamFailure,
		Status:  resp.StatusCode,
		Message: statusText(resp),
		Details: body,
	}
}

func networkFailure(err error) *ProxyError {
	return &ProxyError{Kind: ErrNetworkFailure, Status: http.StatusInternalServerError, Message: msgLegacyUnreachable, Err: err}
}

func malformedResponse(err error) *ProxyError {
	return &ProxyError{Kind: ErrMalformedResponse, Status: http.StatusInternalServerError, Message: msgLegacyUnreachable, Err: err}
}

// asProxyError maps any error onto the taxonomy; unknown errors are network failures.
func asProxyError(err error) *ProxyError {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe
	}
	return networkFailure(err)
}

// statusText returns the reason phrase of resp, e.g. "Not Found".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	if text == "" {
		text = "legacy server error"
	}
	return text
}

// =============================================================================
// ERROR RESPONSES
// =============================================================================

// errorPayload renders {"error": msg}. Upstream failures also carry
// "status" and "details"; JSON details are embedded as-is.
func errorPayload(pe *ProxyError) []byte {
	payload, _ := sjson.SetBytes([]byte(`{}`), "error", pe.Message)
	if pe.Kind != ErrUpstreamFailure {
		return payload
	}
	payload, _ = sjson.SetBytes(payload, "status", pe.Status)
	if len(pe.Details) == 0 {
		return payload
	}
	if gjson.ValidBytes(pe.Details) {
		payload, _ = sjson.SetRawBytes(payload, "details", pe.Details)
	} else {
		payload, _ = sjson.SetBytes(payload, "details", string(pe.Details))
	}
	return payload
}

func writeProxyError(w http.ResponseWriter, pe *ProxyError) {
	writeJSONBytes(w, pe.Status, errorPayload(pe))
}

// writeError writes a {"error": msg} JSON response.
func writeError(w http.ResponseWriter, status int, msg string) {
	payload, _ := sjson.SetBytes([]byte(`{}`), "error", msg)
	writeJSONBytes(w, status, payload)
}

func writeJSONBytes(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
