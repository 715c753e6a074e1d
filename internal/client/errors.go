package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"llmprobe/pkg/types"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int    // e.g. 401
	Status     string // e.g. "401 Unauthorized"
	Message    string // server-provided error text, if any
}

func (e *StatusError) Error() string {
	switch {
	case e.Status != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	case e.Status != "":
		return e.Status
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("%d %s", e.StatusCode, strings.ToLower(http.StatusText(e.StatusCode)))
	}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the server rejected the credentials (401).
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

// IsNotFound reports whether the server returned 404, typically an unknown model.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// StreamError is an error reported by the server inside a streamed chunk
// after a 200 status was already sent.
type StreamError struct{ Message string }

func (e *StreamError) Error() string { return "stream error: " + e.Message }

// newStatusError builds a StatusError from a response and up to 4 KiB of its body.
// Both the native {"error":"..."} and the OpenAI {"error":{"message":...}}
// shapes are understood; anything else is kept verbatim.
func newStatusError(resp *http.Response, body []byte) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return se
	}
	var native types.ErrorResponse
	if err := json.Unmarshal(body, &native); err == nil && native.Error != "" {
		se.Message = native.Error
		return se
	}
	var oai types.OpenAIErrorResponse
	if err := json.Unmarshal(body, &oai); err == nil && oai.Error.Message != "" {
		se.Message = oai.Error.Message
		return se
	}
	se.Message = trimmed
	return se
}
