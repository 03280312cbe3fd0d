// Defines shared service dependencies for handlers.

package handlers

import (
	"github.com/timsamar3/dasimm/internal/storage"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Stations *storage.StationService
	Saved    *storage.SavedService
	User     *storage.UserService
	Session  *storage.SessionService
}

// Config holds configuration values needed by handlers.
type Config struct {
	JWTSecret []byte
	Version   string
	Quotas    storage.Quotas
	// Template is the report workbook path. A missing file falls back to a
	// generated header.
	Template string
	// DisplayColumns are the columns of the field-scoped grid.
	DisplayColumns []string
}
