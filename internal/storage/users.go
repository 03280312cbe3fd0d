// Implements user authentication against the configured accounts.

package storage

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Role is a user's privilege level.
type Role string

const (
	// RoleUser can browse, save and export.
	RoleUser Role = "user"
	// RoleAdmin can additionally edit, delete and upload the master table.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an authenticated account.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserConfig is an account as stored in the configuration file.
type UserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         Role   `yaml:"role"`
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func bcryptMatches(hash, password string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against when the username is unknown so that both
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("dasimm"), bcrypt.DefaultCost)
	return h
})

// UserService authenticates the configured accounts.
type UserService struct {
	users map[string]UserConfig
}

// NewUserService indexes users by username.
func NewUserService(users []UserConfig) (*UserService, error) {
	s := &UserService{users: make(map[string]UserConfig, len(users))}
	for _, u := range users {
		if u.Username == "" {
			return nil, errors.New("user with empty username")
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %q: invalid role %q", u.Username, u.Role)
		}
		if _, ok := s.users[u.Username]; ok {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		s.users[u.Username] = u
	}
	return s, nil
}

// Authenticate checks username and password.
func (s *UserService) Authenticate(username, password string) (*User, error) {
	u, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &User{Username: u.Username, Role: u.Role}, nil
}

// Get returns the account named username.
func (s *UserService) Get(username string) (*User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return &User{Username: u.Username, Role: u.Role}, nil
}
