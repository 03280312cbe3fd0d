// Provides the response writer that stamps rate limit headers.

package ratelimit

import (
	"net/http"
	"strconv"
)

// WriteHeaders sets the X-RateLimit headers, plus Retry-After when denied.
func WriteHeaders(w http.ResponseWriter, result Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// ResponseWriter writes the rate limit headers ahead of the first byte of
// the response.
type ResponseWriter struct {
	http.ResponseWriter
	result  Result
	stamped bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter, result Result) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, result: result}
}

func (rw *ResponseWriter) stamp() {
	if !rw.stamped {
		WriteHeaders(rw.ResponseWriter, rw.result)
		rw.stamped = true
	}
}

// WriteHeader implements http.ResponseWriter.
func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.stamp()
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write implements http.ResponseWriter.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.stamp()
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// BuildKey returns the bucket key for identifier within a tier.
func BuildKey(scope Scope, identifier, tierName string) string {
	prefix := "ip:"
	if scope == ScopeUser {
		prefix = "user:"
	}
	return prefix + identifier + ":" + tierName
}
