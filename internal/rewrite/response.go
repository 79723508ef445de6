package rewrite

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

// HTMLContentType is the type of every rewritten document; the rewriter works
// on decoded strings so the output is always UTF-8.
const HTMLContentType = "text/html; charset=UTF-8"

// NewHTMLResponse builds a response carrying html as its body. Headers are
// copied from orig, Content-Type is set only when orig has none, and the
// status line is preserved. Content-Length and Content-Encoding describe the
// old body and are replaced.
func NewHTMLResponse(html string, orig *http.Response) *http.Response {
	header := make(http.Header)
	status, statusText := http.StatusOK, ""
	proto, protoMajor, protoMinor := "HTTP/1.1", 1, 1
	if orig != nil {
		header = orig.Header.Clone()
		status, statusText = orig.StatusCode, orig.Status
		if orig.Proto != "" {
			proto, protoMajor, protoMinor = orig.Proto, orig.ProtoMajor, orig.ProtoMinor
		}
	}
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", HTMLContentType)
	}
	header.Del("Content-Encoding")
	header.Set("Content-Length", strconv.Itoa(len(html)))
	if statusText == "" {
		statusText = strconv.Itoa(status) + " " + http.StatusText(status)
	}

	return &http.Response{
		Status:        statusText,
		StatusCode:    status,
		Proto:         proto,
		ProtoMajor:    protoMajor,
		ProtoMinor:    protoMinor,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(html)),
		ContentLength: int64(len(html)),
	}
}
