package scratchapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/util"
)

// HTTPError is a bounded summary of a non-200 metadata service response.
// Raw bodies are never carried whole; only a sanitized snippet survives,
// since the marker text ends up in a CSV column.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Snippet    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "metadata api error"
	}
	msg := fmt.Sprintf("metadata api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status))
	if s := strings.TrimSpace(e.Snippet); s != "" {
		msg += " body=" + s
	}
	return msg
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	const max = 128
	b := body
	if len(b) > max {
		b = b[:max]
	}
	h.Snippet = util.Sanitize(string(b))
	return h
}
