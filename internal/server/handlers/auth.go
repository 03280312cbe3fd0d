// Handles login, logout and the current user.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/server/reqctx"
	"github.com/timsamar3/dasimm/internal/storage"
)

const tokenExpiration = 24 * time.Hour

// AuthHandler issues and revokes JWT sessions.
type AuthHandler struct {
	users     *storage.UserService
	sessions  *storage.SessionService
	jwtSecret []byte
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users *storage.UserService, sessions *storage.SessionService, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, jwtSecret: jwtSecret}
}

// Login checks the credentials and returns a signed token. The token is also
// set as the session cookie.
func (h *AuthHandler) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCredentials) {
			slog.WarnContext(ctx, "Failed login", "username", req.Username, "ip", reqctx.ClientIP(ctx))
			return nil, dto.NewAPIError(http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "Username atau password salah")
		}
		return nil, dto.InternalWithError("Failed to authenticate", err)
	}
	token, sess, err := h.GenerateToken(user)
	if err != nil {
		return nil, dto.InternalWithError("Failed to generate token", err)
	}
	slog.InfoContext(ctx, "Logged in", "username", user.Username, "role", string(user.Role), "ip", reqctx.ClientIP(ctx))
	return &dto.LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: userResponse(user)}, nil
}

// GenerateToken opens a session for user and returns its signed JWT.
func (h *AuthHandler) GenerateToken(user *storage.User) (string, storage.Session, error) {
	sess := h.sessions.Create(user.Username, tokenExpiration)
	claims := jwt.MapClaims{
		"sub": user.Username,
		"sid": sess.ID.String(),
		"exp": sess.ExpiresAt.Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(h.jwtSecret)
	if err != nil {
		h.sessions.Revoke(sess.ID)
		return "", storage.Session{}, err
	}
	return s, sess, nil
}

// Logout revokes the current session and clears the cookie.
func (h *AuthHandler) Logout(ctx context.Context, user *storage.User, _ *dto.LogoutRequest) (*dto.LogoutResponse, error) {
	if sid := reqctx.SessionID(ctx); !sid.IsZero() {
		h.sessions.Revoke(sid)
	}
	slog.InfoContext(ctx, "Logged out", "username", user.Username)
	return &dto.LogoutResponse{Ok: true}, nil
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(ctx context.Context, user *storage.User, _ *dto.MeRequest) (*dto.UserResponse, error) {
	return userResponse(user), nil
}

func userResponse(u *storage.User) *dto.UserResponse {
	return &dto.UserResponse{Username: u.Username, Role: string(u.Role), IsAdmin: u.IsAdmin()}
}
