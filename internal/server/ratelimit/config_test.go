package ratelimit

import (
	"testing"

	"github.com/timsamar3/dasimm/internal/storage"
)

func tierName(t *Tier) string {
	if t == nil {
		return ""
	}
	return t.Name
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(storage.DefaultRateLimits())
	defer cfg.Close()
	for _, tt := range []struct {
		tier  *Tier
		scope Scope
	}{
		{cfg.Auth, ScopeIP},
		{cfg.Write, ScopeUser},
		{cfg.ReadAuth, ScopeUser},
		{cfg.ReadUnauth, ScopeIP},
	} {
		if tt.tier == nil {
			t.Fatal("tier is nil with default limits")
		}
		if tt.tier.Scope != tt.scope {
			t.Errorf("%s scope = %d, want %d", tt.tier.Name, tt.tier.Scope, tt.scope)
		}
	}

	off := NewConfig(storage.RateLimits{WriteRatePerMin: 10})
	defer off.Close()
	if off.Auth != nil || off.ReadAuth != nil || off.ReadUnauth != nil {
		t.Error("zero limits produced tiers")
	}
	if off.Write == nil {
		t.Error("write tier missing")
	}
	if got := off.MatchUnauth("POST", "/api/auth/login"); got != nil {
		t.Errorf("disabled auth tier matched %q", got.Name)
	}
}

func TestConfig_MatchUnauth(t *testing.T) {
	cfg := NewConfig(storage.DefaultRateLimits())
	defer cfg.Close()
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/api/health", ""},
		{"POST", "/api/auth/login", "auth"},
		{"GET", "/api/stations", "read"},
		{"POST", "/api/saved", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := tierName(cfg.MatchUnauth(tt.method, tt.path)); got != tt.want {
				t.Errorf("MatchUnauth() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_MatchAuth(t *testing.T) {
	cfg := NewConfig(storage.DefaultRateLimits())
	defer cfg.Close()
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/api/health", ""},
		{"GET", "/api/inspections", "read"},
		{"POST", "/api/stations", "read"},
		{"POST", "/api/stations/export", "read"},
		{"POST", "/api/admin/stations", "read"},
		{"POST", "/api/saved", "write"},
		{"PUT", "/api/admin/stations/3", "write"},
		{"DELETE", "/api/saved", "write"},
		{"PATCH", "/api/saved", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := tierName(cfg.MatchAuth(tt.method, tt.path)); got != tt.want {
				t.Errorf("MatchAuth() = %q, want %q", got, tt.want)
			}
		})
	}
}
