package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("upstream unavailable")
	ErrInvalidResponse = errors.New("invalid upstream response")

	// errServerFault marks 5xx answers so the breaker counts them.
	errServerFault = errors.New("upstream server error")
)

// StatusError is a non-2xx answer from the shop API.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.statusLine())
}

// messageFields are checked in order for a human readable error.
var messageFields = []string{"message", "error", "detail"}

// Message returns the error text the shop put in the body, or a line
// built from the status when the body carries none.
func (e *StatusError) Message() string {
	var body map[string]any
	if err := json.Unmarshal(e.Body, &body); err == nil {
		for _, field := range messageFields {
			if s, ok := body[field].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("purchase failed: %s", e.statusLine())
}

func (e *StatusError) statusLine() string {
	if e.Status != "" {
		return e.Status
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return fmt.Sprintf("%d %s", e.StatusCode, text)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

func newStatusError(resp *Response) *StatusError {
	return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: resp.Body}
}
