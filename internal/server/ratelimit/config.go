// Defines rate limit tiers and how requests map onto them.

package ratelimit

import (
	"net/http"
	"time"

	"github.com/timsamar3/dasimm/internal/storage"
)

// Scope selects what a bucket key is derived from.
type Scope int

const (
	// ScopeIP keys buckets by client address.
	ScopeIP Scope = iota
	// ScopeUser keys buckets by username.
	ScopeUser
)

// Tier is a named limiter with its key scope.
type Tier struct {
	Name    string
	Limiter *Limiter
	Scope   Scope
}

// Config holds the tiers. A nil tier is unlimited.
type Config struct {
	Auth       *Tier
	Write      *Tier
	ReadAuth   *Tier
	ReadUnauth *Tier
}

// readPosts are POST endpoints that only query data.
var readPosts = map[string]bool{
	"/api/stations":        true,
	"/api/stations/export": true,
	"/api/admin/stations":  true,
}

// NewConfig builds tiers from per-minute limits. A zero limit disables the
// tier. Burst equals the per-minute limit for logins and a sixth of it
// otherwise.
func NewConfig(rl storage.RateLimits) *Config {
	return &Config{
		Auth:       newTier("auth", rl.AuthRatePerMin, rl.AuthRatePerMin, ScopeIP),
		Write:      newTier("write", rl.WriteRatePerMin, max(rl.WriteRatePerMin/6, 1), ScopeUser),
		ReadAuth:   newTier("read", rl.ReadAuthRatePerMin, max(rl.ReadAuthRatePerMin/6, 1), ScopeUser),
		ReadUnauth: newTier("read", rl.ReadUnauthRatePerMin, max(rl.ReadUnauthRatePerMin/6, 1), ScopeIP),
	}
}

func newTier(name string, perMin, burst int, scope Scope) *Tier {
	if perMin <= 0 {
		return nil
	}
	return &Tier{Name: name, Limiter: NewLimiter(perMin, time.Minute, burst), Scope: scope}
}

// MatchUnauth returns the tier of a request made without credentials, or nil.
func (c *Config) MatchUnauth(method, path string) *Tier {
	switch {
	case path == "/api/health":
		return nil
	case isAuthEndpoint(method, path):
		return c.Auth
	case method == http.MethodGet:
		return c.ReadUnauth
	}
	return nil
}

// MatchAuth returns the tier of an authenticated request, or nil.
func (c *Config) MatchAuth(method, path string) *Tier {
	switch {
	case path == "/api/health":
		return nil
	case method == http.MethodPost && readPosts[path]:
		return c.ReadAuth
	case method == http.MethodPost, method == http.MethodPut, method == http.MethodDelete:
		return c.Write
	case method == http.MethodGet:
		return c.ReadAuth
	}
	return nil
}

// Close stops every limiter.
func (c *Config) Close() {
	for _, t := range []*Tier{c.Auth, c.Write, c.ReadAuth, c.ReadUnauth} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}

func isAuthEndpoint(method, path string) bool {
	return method == http.MethodPost && path == "/api/auth/login"
}
