package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteHeaders(t *testing.T) {
	tests := []struct {
		name       string
		res        Result
		remaining  string
		retryAfter string
	}{
		{"Allowed", Result{Allowed: true, Limit: 60, Remaining: 45, ResetAt: time.Unix(1706012345, 0)}, "45", ""},
		{"Denied", Result{Limit: 60, ResetAt: time.Unix(1706012345, 0), RetryAfter: 30 * time.Second}, "0", "30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteHeaders(w, tt.res)
			h := w.Header()
			if got := h.Get("X-RateLimit-Limit"); got != "60" {
				t.Errorf("X-RateLimit-Limit = %q", got)
			}
			if got := h.Get("X-RateLimit-Remaining"); got != tt.remaining {
				t.Errorf("X-RateLimit-Remaining = %q, want %q", got, tt.remaining)
			}
			if got := h.Get("X-RateLimit-Reset"); got != "1706012345" {
				t.Errorf("X-RateLimit-Reset = %q", got)
			}
			if got := h.Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: time.Unix(1, 0)})
	rw.WriteHeader(http.StatusCreated)
	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "99" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	if rec.Code != http.StatusCreated || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() mismatch")
	}
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		scope      Scope
		identifier string
		tier       string
		want       string
	}{
		{ScopeIP, "192.168.1.1", "auth", "ip:192.168.1.1:auth"},
		{ScopeUser, "ani", "write", "user:ani:write"},
	}
	for _, tt := range tests {
		if got := BuildKey(tt.scope, tt.identifier, tt.tier); got != tt.want {
			t.Errorf("BuildKey() = %q, want %q", got, tt.want)
		}
	}
}
