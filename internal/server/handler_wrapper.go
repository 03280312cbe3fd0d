// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"
	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/server/handlers"
	"github.com/timsamar3/dasimm/internal/server/ratelimit"
	"github.com/timsamar3/dasimm/internal/server/reqctx"
	"github.com/timsamar3/dasimm/internal/storage"
)

// addRequestMetadataToContext adds client IP and User-Agent to the context.
func addRequestMetadataToContext(ctx context.Context, r *http.Request) context.Context {
	ctx = reqctx.WithClientIP(ctx, reqctx.GetClientIP(r))
	ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// authResult holds the result of JWT/session validation.
type authResult struct {
	user        *storage.User
	sessionID   ksid.ID
	tokenString string
}

// cookieSetter is implemented by responses that set cookies.
type cookieSetter interface {
	Cookies() []*http.Cookie
}

// checkRateLimit checks rate limit and wraps the response writer if needed.
// Returns the (possibly wrapped) writer and whether the request should proceed.
func checkRateLimit(w http.ResponseWriter, tier *ratelimit.Tier, identifier string) (http.ResponseWriter, bool) {
	if tier == nil {
		return w, true
	}
	key := ratelimit.BuildKey(tier.Scope, identifier, tier.Name)
	result := tier.Limiter.Allow(key)
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		writeRateLimitError(w, result)
		return w, false
	}
	return w, true
}

// isForm reports whether the request body is form encoded.
func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// readAndDecodeBody reads the request body with size limit and decodes it
// into input. Form encoded bodies are parsed into r.Form and bound later
// through the query tags; anything else is decoded as JSON.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, cfg *handlers.Config) bool {
	// Limit request body size
	if cfg != nil && cfg.Quotas.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Quotas.MaxRequestBodyBytes)
	}

	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			if maxBytesErr := checkMaxBytesError(err); maxBytesErr != nil {
				apiErr := dto.PayloadTooLarge(maxBytesErr.Limit)
				writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
				return false
			}
			slog.WarnContext(ctx, "Failed to parse form", "err", err)
			writeBadRequestError(w, "Invalid form body")
			return false
		}
		return true
	}

	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		if maxBytesErr := checkMaxBytesError(err); maxBytesErr != nil {
			apiErr := dto.PayloadTooLarge(maxBytesErr.Limit)
			writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeBadRequestError(w, "Failed to read request body")
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "err", err)
			writeBadRequestError(w, "Invalid request body")
			return false
		}
	}
	return true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		var ewb dto.ErrorWithBody
		if errors.As(err, &ewb) {
			logHandlerError(ctx, err, ewb.StatusCode(), "")
			writeJSON(w, ewb.StatusCode(), ewb.Body())
			return
		}

		statusCode := http.StatusInternalServerError
		errorCode := dto.ErrorCodeInternal
		details := make(map[string]any)

		var ewsErr dto.ErrorWithStatus
		if errors.As(err, &ewsErr) {
			statusCode = ewsErr.StatusCode()
			errorCode = ewsErr.Code()
			if d := ewsErr.Details(); d != nil {
				details = d
			}
		}

		logHandlerError(ctx, err, statusCode, errorCode)
		writeErrorResponseWithCode(w, statusCode, errorCode, err.Error(), details)
		return
	}

	if cs, ok := any(output).(cookieSetter); ok {
		for _, c := range cs.Cookies() {
			http.SetCookie(w, c)
		}
	}
	writeJSON(w, http.StatusOK, output)
}

func logHandlerError(ctx context.Context, err error, statusCode int, code dto.ErrorCode) {
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", code)
		return
	}
	slog.WarnContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", code)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// getRateLimitIdentifier returns the appropriate identifier for rate limiting based on scope.
func getRateLimitIdentifier(tier *ratelimit.Tier, user *storage.User, r *http.Request) string {
	if tier.Scope == ratelimit.ScopeUser && user != nil {
		return user.Username
	}
	return reqctx.GetClientIP(r)
}

// validateAuthWithContext validates JWT and session, updating context with session info.
func validateAuthWithContext(ctx context.Context, r *http.Request, svc *handlers.Services, cfg *handlers.Config) (*authResult, context.Context, error) {
	user, sessionID, tokenString, err := validateJWTAndSession(r, svc.User, svc.Session, cfg.JWTSecret)
	if err != nil {
		return nil, ctx, err
	}
	ctx = reqctx.WithSessionID(ctx, sessionID)
	ctx = reqctx.WithTokenString(ctx, tokenString)
	ctx = reqctx.WithUser(ctx, user)
	return &authResult{user: user, sessionID: sessionID, tokenString: tokenString}, ctx, nil
}

// bindAndValidate populates path and query parameters and validates input.
// Returns false if validation failed and the error was written.
func bindAndValidate[In any, PtrIn interface {
	*In
	dto.Validatable
}](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In) bool {
	populatePathParams(r, input)
	populateQueryParams(r, input)
	if err := PtrIn(input).Validate(); err != nil {
		handleValidationError(ctx, w, err)
		return false
	}
	return true
}

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type StationRequest struct {
//	    No int `path:"no"`
//	}
//
//	func (h *Handler) Get(ctx context.Context, req *StationRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *handlers.Config, limiters *ratelimit.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		// Rate limit check for unauthenticated endpoints
		var ok bool
		if tier := limiters.MatchUnauth(r.Method, r.URL.Path); tier != nil {
			w, ok = checkRateLimit(w, tier, reqctx.GetClientIP(r))
			if !ok {
				return
			}
		}

		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, cfg) {
			return
		}
		if !bindAndValidate[In, PtrIn](ctx, w, r, input) {
			return
		}

		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps an authenticated handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *storage.User, *In) (*Out, error)
// *In must implement dto.Validatable.
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](
	fn func(context.Context, *storage.User, PtrIn) (*Out, error),
	svc *handlers.Services,
	cfg *handlers.Config,
	limiters *ratelimit.Config,
) http.Handler {
	return wrapAuth(fn, svc, cfg, limiters, false)
}

// WrapAdmin wraps a handler that requires the admin role.
// *In must implement dto.Validatable.
func WrapAdmin[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](
	fn func(context.Context, *storage.User, PtrIn) (*Out, error),
	svc *handlers.Services,
	cfg *handlers.Config,
	limiters *ratelimit.Config,
) http.Handler {
	return wrapAuth(fn, svc, cfg, limiters, true)
}

func wrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](
	fn func(context.Context, *storage.User, PtrIn) (*Out, error),
	svc *handlers.Services,
	cfg *handlers.Config,
	limiters *ratelimit.Config,
	admin bool,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		// Validate JWT and session
		auth, ctx, err := validateAuthWithContext(ctx, r, svc, cfg)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		if admin && !auth.user.IsAdmin() {
			writeForbidden(ctx, w, auth.user, r)
			return
		}

		// Rate limit check for authenticated endpoints
		if tier := limiters.MatchAuth(r.Method, r.URL.Path); tier != nil {
			var ok bool
			w, ok = checkRateLimit(w, tier, getRateLimitIdentifier(tier, auth.user, r))
			if !ok {
				return
			}
		}

		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, cfg) {
			return
		}
		if !bindAndValidate[In, PtrIn](ctx, w, r, input) {
			return
		}

		output, err := fn(ctx, auth.user, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuthRaw wraps a raw http.HandlerFunc with authentication and role checking.
// Use this for handlers that need to handle requests directly (e.g., multipart
// forms and file downloads). maxBody limits the request body when positive.
func WrapAuthRaw(
	fn http.HandlerFunc,
	svc *handlers.Services,
	cfg *handlers.Config,
	limiters *ratelimit.Config,
	admin bool,
	maxBody int64,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		auth, ctx, err := validateAuthWithContext(ctx, r, svc, cfg)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		if admin && !auth.user.IsAdmin() {
			writeForbidden(ctx, w, auth.user, r)
			return
		}

		// Rate limit check for authenticated endpoints
		if tier := limiters.MatchAuth(r.Method, r.URL.Path); tier != nil {
			var ok bool
			w, ok = checkRateLimit(w, tier, getRateLimitIdentifier(tier, auth.user, r))
			if !ok {
				return
			}
		}

		// Limit request body size for raw handlers
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		fn(w, r.WithContext(ctx))
	})
}

var (
	errUnauthorized   = errors.New("unauthorized")
	errInvalidAuthHdr = errors.New("invalid authorization header")
	errInvalidToken   = errors.New("invalid token")
	errInvalidClaims  = errors.New("invalid claims")
	errUserNotFound   = errors.New("user not found")
	errSessionRevoked = errors.New("session revoked")
)

// tokenFromRequest returns the bearer token, falling back to the session
// cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errInvalidAuthHdr
		}
		return parts[1], nil
	}
	if c, err := r.Cookie(dto.SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errUnauthorized
}

// validateJWTAndSession extracts and validates the JWT token and session from the request.
// Returns the user, session ID, token string, and any error.
func validateJWTAndSession(r *http.Request, userService *storage.UserService, sessionService *storage.SessionService, jwtSecret []byte) (*storage.User, ksid.ID, string, error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return nil, 0, "", err
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, 0, "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, 0, "", errInvalidClaims
	}
	username, ok := claims["sub"].(string)
	if !ok || username == "" {
		return nil, 0, "", errInvalidClaims
	}
	sidStr, ok := claims["sid"].(string)
	if !ok || sidStr == "" {
		return nil, 0, "", errInvalidClaims
	}
	sessionID, err := ksid.Parse(sidStr)
	if err != nil {
		return nil, 0, "", errInvalidToken
	}

	user, err := userService.Get(username)
	if err != nil {
		return nil, 0, "", errUserNotFound
	}
	if !sessionService.IsValid(sessionID, username) {
		return nil, 0, "", errSessionRevoked
	}
	return user, sessionID, tokenString, nil
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	bindTagged(elem, "path", r.PathValue)
}

// populateQueryParams populates struct fields tagged with `query:"paramName"`
// from the query string, or from the parsed form when the body was form
// encoded. Embedded structs are walked.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	var values url.Values
	if r.Form != nil {
		values = r.Form
	} else {
		values = r.URL.Query()
	}
	bindTagged(elem, "query", values.Get)
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

func bindTagged(elem reflect.Value, key string, get func(string) string) {
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		fieldVal := elem.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			bindTagged(fieldVal, key, get)
			continue
		}
		tag := field.Tag.Get(key)
		if tag == "" {
			continue
		}
		paramValue := get(tag)
		if paramValue == "" {
			continue
		}
		setField(fieldVal, paramValue)
	}
}

// setField sets v from its textual form. Unparsable values are ignored.
func setField(v reflect.Value, s string) {
	switch {
	case v.Kind() == reflect.String:
		v.SetString(s)
	case v.Kind() == reflect.Int:
		if n, err := strconv.Atoi(s); err == nil {
			v.SetInt(int64(n))
		}
	case v.Kind() == reflect.Pointer && v.Type().Elem().Kind() == reflect.Int:
		if n, err := strconv.Atoi(s); err == nil {
			p := reflect.New(v.Type().Elem())
			p.Elem().SetInt(int64(n))
			v.Set(p)
		}
	default:
		// Try to use encoding.TextUnmarshaler interface for custom types
		if v.CanAddr() {
			if unmarshaler, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
				_ = unmarshaler.UnmarshalText([]byte(s))
			}
		}
	}
}

// checkMaxBytesError checks if an error is a MaxBytesError and returns it, or nil.
func checkMaxBytesError(err error) *http.MaxBytesError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return maxBytesErr
	}
	return nil
}

// handleValidationError handles a validation error from a request's Validate method.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusBadRequest
	errorCode := dto.ErrorCodeValidationFailed
	details := make(map[string]any)

	var ewsErr dto.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		if d := ewsErr.Details(); d != nil {
			details = d
		}
	}

	slog.WarnContext(ctx, "Validation error", "err", err, "statusCode", statusCode, "code", errorCode)
	writeErrorResponseWithCode(w, statusCode, errorCode, err.Error(), details)
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	writeErrorResponseWithCode(w, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, err.Error(), nil)
}

func writeForbidden(ctx context.Context, w http.ResponseWriter, user *storage.User, r *http.Request) {
	slog.WarnContext(ctx, "Admin access denied", "username", user.Username, "path", r.URL.Path)
	writeErrorResponseWithCode(w, http.StatusForbidden, dto.ErrorCodeForbidden, "Forbidden: admin required", nil)
}

// writeBadRequestError writes a 400 Bad Request error response as JSON (internal use).
func writeBadRequestError(w http.ResponseWriter, message string) {
	writeErrorResponseWithCode(w, http.StatusBadRequest, dto.ErrorCodeInvalidFormat, message, nil)
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code dto.ErrorCode, message string, details map[string]any) {
	writeJSON(w, statusCode, dto.ErrorResponse{
		Error: dto.ErrorDetails{
			Code:    code,
			Message: message,
		},
		Details: details,
	})
}

// writeRateLimitError writes a 429 rate limit error response.
func writeRateLimitError(w http.ResponseWriter, result ratelimit.Result) {
	retryAfter := int(result.RetryAfter.Seconds())
	apiErr := dto.RateLimitExceeded(retryAfter)
	writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
}
