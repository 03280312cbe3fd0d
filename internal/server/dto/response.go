package dto

import (
	"net/http"
	"time"
)

// --- Common Responses ---

// OkResponse is a simple success response.
type OkResponse struct {
	Ok bool `json:"ok"`
}

// ResultResponse is the reply of the saved-row edits.
type ResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Health Responses ---

// HealthResponse is a response from a health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rows    int    `json:"rows"`
}

// --- Auth Responses ---

// UserResponse is the API representation of a user.
type UserResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	IsAdmin  bool   `json:"is_admin"`
}

// SessionCookie is the cookie holding the JWT for browser clients.
const SessionCookie = "session"

// LoginResponse is a response from logging in.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// Cookies returns the session cookie carrying the token.
func (r *LoginResponse) Cookies() []*http.Cookie {
	return []*http.Cookie{{
		Name:     SessionCookie,
		Value:    r.Token,
		Path:     "/",
		Expires:  r.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}}
}

// LogoutResponse is a response from logging out.
type LogoutResponse struct {
	Ok bool `json:"ok"`
}

// Cookies returns an expired session cookie.
func (r *LogoutResponse) Cookies() []*http.Cookie {
	return []*http.Cookie{{Name: SessionCookie, Path: "/", MaxAge: -1, HttpOnly: true}}
}

// --- Grid Responses ---

// GridResponse is the DataTables server-side envelope. Data holds either
// positional arrays or column maps depending on the grid.
type GridResponse struct {
	Draw            int    `json:"draw"`
	RecordsTotal    int    `json:"recordsTotal"`
	RecordsFiltered int    `json:"recordsFiltered"`
	Data            []any  `json:"data"`
	Error           string `json:"error,omitempty"`
}

// --- Station Responses ---

// StationResponse is one master table row.
type StationResponse struct {
	No      int               `json:"no"`
	Columns []string          `json:"columns"`
	Data    map[string]string `json:"data"`
}

// DeleteStationResponse is a response from deleting a master table row.
type DeleteStationResponse struct {
	Message string `json:"message"`
	Rows    int    `json:"rows"`
}

// UploadResponse summarizes an ingested workbook.
type UploadResponse struct {
	Message   string `json:"message"`
	Mode      string `json:"mode"`
	Added     int    `json:"added"`
	TotalRows int    `json:"total_rows"`
}

// DebugResponse describes the master table file.
type DebugResponse struct {
	FileExists bool                `json:"file_exists"`
	FileSize   int64               `json:"file_size"`
	Rows       int                 `json:"rows"`
	Columns    []string            `json:"columns"`
	Sample     []map[string]string `json:"sample"`
}

// --- Saved Responses ---

// SavedListResponse is the saved subset.
type SavedListResponse struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// SaveResponse reports how many rows a save promoted.
type SaveResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	NewCount       int    `json:"new_count"`
	DuplicateCount int    `json:"duplicate_count"`
}

// UpdateSavedResponse is a response from editing a saved row.
type UpdateSavedResponse struct {
	ResultResponse
	Data map[string]string `json:"data"`
}

// DeleteSavedResponse is a response from deleting a saved row.
type DeleteSavedResponse struct {
	ResultResponse
	RemainingCount int `json:"remaining_count"`
	DeletedIndex   int `json:"deleted_index"`
}

// ClearSavedResponse is a response from clearing the saved subset.
type ClearSavedResponse struct {
	Message string `json:"message"`
	Cleared int    `json:"cleared"`
}
