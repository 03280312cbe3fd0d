// Manages server configuration stored in config.yaml.

package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/timsamar3/dasimm/internal/dedup"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the configuration file name inside the data directory.
const ConfigFile = "config.yaml"

// ServerConfig stores all server-wide configuration.
// Loaded from config.yaml, created with defaults if missing.
type ServerConfig struct {
	// JWTSecret is the hex encoded secret used to sign JWT tokens.
	// Auto-generated if empty on first load.
	JWTSecret string `yaml:"jwt_secret"`

	Files      Files        `yaml:"files"`
	Users      []UserConfig `yaml:"users"`
	Quotas     Quotas       `yaml:"quotas"`
	RateLimits RateLimits   `yaml:"rate_limits"`
	Schema     Schema       `yaml:"schema"`

	dataDir string
}

// Files names the data files. Relative paths are resolved against the data
// directory.
type Files struct {
	Data     string `yaml:"data"`
	Saved    string `yaml:"saved"`
	Uploads  string `yaml:"uploads"`
	Template string `yaml:"template"`
}

// DefaultFiles returns the default file layout.
func DefaultFiles() Files {
	return Files{
		Data:     "data_sims.xlsx",
		Saved:    "data_pemeriksaan_tersimpan.xlsx",
		Uploads:  "uploads",
		Template: "Template Format Pemeriksaan UPLOAD.xlsx",
	}
}

// Quotas defines server-wide resource limits.
type Quotas struct {
	// MaxRequestBodyBytes limits the size of any JSON or form request body.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`

	// MaxUploadBytes limits the size of an uploaded workbook.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// Validate checks that quota values are positive.
func (q *Quotas) Validate() error {
	if q.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be positive")
	}
	if q.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	return nil
}

// DefaultQuotas returns the default quotas.
func DefaultQuotas() Quotas {
	return Quotas{
		MaxRequestBodyBytes: 10 * 1024 * 1024, // 10 MiB
		MaxUploadBytes:      50 * 1024 * 1024, // 50 MiB
	}
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// AuthRatePerMin limits login attempts. 0 means unlimited.
	AuthRatePerMin int `yaml:"auth_rate_per_min"`

	// WriteRatePerMin limits write operations (POST/PUT/DELETE).
	// 0 means unlimited.
	WriteRatePerMin int `yaml:"write_rate_per_min"`

	// ReadAuthRatePerMin limits authenticated read operations.
	// 0 means unlimited.
	ReadAuthRatePerMin int `yaml:"read_auth_rate_per_min"`

	// ReadUnauthRatePerMin limits unauthenticated read operations.
	// 0 means unlimited.
	ReadUnauthRatePerMin int `yaml:"read_unauth_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.AuthRatePerMin < 0 {
		return errors.New("auth_rate_per_min must be non-negative")
	}
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if r.ReadAuthRatePerMin < 0 {
		return errors.New("read_auth_rate_per_min must be non-negative")
	}
	if r.ReadUnauthRatePerMin < 0 {
		return errors.New("read_unauth_rate_per_min must be non-negative")
	}
	return nil
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		AuthRatePerMin:       5,     // 5 req/min for login
		WriteRatePerMin:      120,   // 120 req/min for writes
		ReadAuthRatePerMin:   30000, // 30k req/min for authenticated reads
		ReadUnauthRatePerMin: 600,   // 600 req/min for unauthenticated reads
	}
}

// Schema configures the column sets of the tables.
type Schema struct {
	RequiredColumns []string `yaml:"required_columns"`
	DisplayColumns  []string `yaml:"display_columns"`
	NumericHints    []string `yaml:"numeric_hints"`
}

// DefaultSchema returns the default column sets.
func DefaultSchema() Schema {
	return Schema{
		RequiredColumns: slices.Clone(DefaultRequiredColumns),
		DisplayColumns:  slices.Clone(dedup.DisplayColumns),
		NumericHints:    slices.Clone(sheetdb.DefaultNumericHints),
	}
}

// Validate checks that the column sets are usable.
func (s *Schema) Validate() error {
	if len(s.DisplayColumns) == 0 {
		return errors.New("display_columns is required")
	}
	for _, c := range s.RequiredColumns {
		if c == "" {
			return errors.New("required_columns contains an empty name")
		}
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	secret, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return fmt.Errorf("jwt_secret must be hex encoded: %w", err)
	}
	if len(secret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	if c.Files.Data == "" || c.Files.Saved == "" || c.Files.Uploads == "" {
		return errors.New("files: data, saved and uploads are required")
	}
	if _, err := NewUserService(c.Users); err != nil {
		return fmt.Errorf("users: %w", err)
	}
	if err := c.Quotas.Validate(); err != nil {
		return fmt.Errorf("quotas: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	if err := c.Schema.Validate(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Secret returns the decoded JWT secret.
func (c *ServerConfig) Secret() []byte {
	b, _ := hex.DecodeString(c.JWTSecret)
	return b
}

// Path resolves a configured file name against the data directory.
func (c *ServerConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.dataDir, name)
}

// HasUser reports whether an account named username is configured.
func (c *ServerConfig) HasUser(username string) bool {
	return slices.ContainsFunc(c.Users, func(u UserConfig) bool { return u.Username == username })
}

// EnsureAdmin makes sure an "admin" account exists. When password is
// non-empty the account's password is set to it. It reports whether the
// configuration was changed.
func (c *ServerConfig) EnsureAdmin(password string) (changed bool, err error) {
	i := slices.IndexFunc(c.Users, func(u UserConfig) bool { return u.Username == "admin" })
	if i >= 0 && password == "" {
		return false, nil
	}
	if i >= 0 {
		if bcryptMatches(c.Users[i].PasswordHash, password) && c.Users[i].Role == RoleAdmin {
			return false, nil
		}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if i >= 0 {
		c.Users[i].PasswordHash = hash
		c.Users[i].Role = RoleAdmin
	} else {
		c.Users = append(c.Users, UserConfig{Username: "admin", PasswordHash: hash, Role: RoleAdmin})
	}
	return true, nil
}

// LoadServerConfig loads configuration from dataDir/config.yaml.
// Creates the file with defaults if it doesn't exist.
// Auto-generates JWTSecret if empty.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, ConfigFile)

	cfg := ServerConfig{
		Files:      DefaultFiles(),
		Quotas:     DefaultQuotas(),
		RateLimits: DefaultRateLimits(),
		Schema:     DefaultSchema(),
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
		}
		// File doesn't exist, will create with defaults
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", ConfigFile, err)
		}
	}
	cfg.dataDir = dataDir

	modified := false
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(secret)
		modified = true
	}

	if modified || errors.Is(err, os.ErrNotExist) {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	return &cfg, nil
}

// Save saves configuration to config.yaml in the data directory it was
// loaded from.
func (c *ServerConfig) Save() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dataDir, ConfigFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigFile, err)
	}
	return nil
}
