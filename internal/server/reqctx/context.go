// Package reqctx carries per-request metadata (client address, session and
// authenticated user) through context.Context.
package reqctx

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/maruel/ksid"
	"github.com/timsamar3/dasimm/internal/storage"
)

// GetClientIP returns the client address of r. The leftmost X-Forwarded-For
// entry wins, then X-Real-IP, then RemoteAddr without its port.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

type contextKey string

const (
	keyClientIP    contextKey = "clientIP"
	keyUserAgent   contextKey = "userAgent"
	keySessionID   contextKey = "sessionID"
	keyTokenString contextKey = "tokenString"
	keyUser        contextKey = "user"
)

// WithClientIP adds the client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP extracts the client IP from the context.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(keyClientIP).(string)
	return v
}

// WithUserAgent adds the User-Agent to the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, keyUserAgent, ua)
}

// UserAgent extracts the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(keyUserAgent).(string)
	return v
}

// WithSessionID adds the login session ID to the context.
func WithSessionID(ctx context.Context, id ksid.ID) context.Context {
	return context.WithValue(ctx, keySessionID, id)
}

// SessionID extracts the login session ID from the context, or zero.
func SessionID(ctx context.Context) ksid.ID {
	v, _ := ctx.Value(keySessionID).(ksid.ID)
	return v
}

// WithTokenString adds the raw JWT to the context.
func WithTokenString(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyTokenString, token)
}

// TokenString extracts the raw JWT from the context.
func TokenString(ctx context.Context) string {
	v, _ := ctx.Value(keyTokenString).(string)
	return v
}

// WithUser adds the authenticated user to the context.
func WithUser(ctx context.Context, user *storage.User) context.Context {
	return context.WithValue(ctx, keyUser, user)
}

// User extracts the authenticated user from the context, or nil.
func User(ctx context.Context) *storage.User {
	v, _ := ctx.Value(keyUser).(*storage.User)
	return v
}
