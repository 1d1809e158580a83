package types

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse is the body of every error generated by the proxy.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Messages returned to clients.
const (
	// MessageRejected is returned with 403 when no allow rule matches.
	MessageRejected = "Request not supported by proxy"

	// MessageNoUpstream is returned with 503 when the registry is empty.
	MessageNoUpstream = "No upstream node available"

	// MessageUpstreamFailed is returned with 502 on a transport error.
	MessageUpstreamFailed = "Upstream request failed"

	// MessageTransformFailed is returned with 502 when the post-response hook fails.
	MessageTransformFailed = "Response transform failed"

	// MessageUpstreamTimeout is returned with 504 when the upstream deadline expires.
	MessageUpstreamTimeout = "Upstream request timed out"

	// MessageInternal is returned with 500 after a recovered panic.
	MessageInternal = "Internal proxy error"
)

// NewErrorResponse creates an error payload.
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

// Bytes returns the compact JSON encoding, without a trailing newline.
func (e *ErrorResponse) Bytes() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		// A struct of one string field always marshals.
		return []byte(`{"error":"` + MessageInternal + `"}`)
	}
	return b
}

// WriteError writes status and a JSON error body to w.
func WriteError(w http.ResponseWriter, status int, message string) {
	body := NewErrorResponse(message).Bytes()

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
