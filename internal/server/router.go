// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/server/handlers"
	"github.com/timsamar3/dasimm/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router.
// Serves API endpoints at /api/*. Every endpoint except health and login
// requires a JWT; /api/admin/* additionally requires the admin role.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, limits *ratelimit.Config) http.Handler {
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(cfg.Version, svc.Stations)
	authh := handlers.NewAuthHandler(svc.User, svc.Session, cfg.JWTSecret)
	sth := handlers.NewStationHandler(svc.Stations, cfg.Template)
	ih := handlers.NewInspectionHandler(svc.Stations, cfg.DisplayColumns, cfg.Template)
	sh := handlers.NewSavedHandler(svc.Saved, cfg.Template)
	ah := handlers.NewAdminHandler(svc.Stations)
	body := cfg.Quotas.MaxRequestBodyBytes

	// Health check
	mux.Handle("GET /api/health", Wrap(hh.Health, cfg, limits))

	// Auth endpoints
	mux.Handle("POST /api/auth/login", Wrap(authh.Login, cfg, limits))
	mux.Handle("POST /api/auth/logout", WrapAuth(authh.Logout, svc, cfg, limits))
	mux.Handle("GET /api/auth/me", WrapAuth(authh.Me, svc, cfg, limits))

	// General grid and report downloads
	mux.Handle("GET /api/stations", WrapAuth(sth.Grid, svc, cfg, limits))
	mux.Handle("POST /api/stations", WrapAuth(sth.Grid, svc, cfg, limits))
	mux.Handle("POST /api/stations/export", WrapAuthRaw(sth.Export, svc, cfg, limits, false, body))
	mux.Handle("GET /api/stations/export-all", WrapAuthRaw(sth.ExportAll, svc, cfg, limits, false, body))

	// Field-scoped grid
	mux.Handle("GET /api/inspections", WrapAuth(ih.Grid, svc, cfg, limits))
	mux.Handle("GET /api/inspections/export", WrapAuthRaw(ih.Export, svc, cfg, limits, false, body))

	// Saved subset
	mux.Handle("GET /api/saved", WrapAuth(sh.List, svc, cfg, limits))
	mux.Handle("POST /api/saved", WrapAuth(sh.Save, svc, cfg, limits))
	mux.Handle("DELETE /api/saved", WrapAuth(sh.Clear, svc, cfg, limits))
	mux.Handle("POST /api/saved/update", WrapAuth(sh.Update, svc, cfg, limits))
	mux.Handle("POST /api/saved/delete", WrapAuth(sh.Delete, svc, cfg, limits))
	mux.Handle("GET /api/saved/export", WrapAuthRaw(sh.Export, svc, cfg, limits, false, body))
	mux.Handle("GET /api/saved/export.csv", WrapAuthRaw(sh.ExportCSV, svc, cfg, limits, false, body))
	mux.Handle("POST /api/saved/import.csv", WrapAuthRaw(sh.ImportCSV, svc, cfg, limits, false, cfg.Quotas.MaxUploadBytes))

	// Admin endpoints
	mux.Handle("GET /api/admin/stations", WrapAdmin(ah.Grid, svc, cfg, limits))
	mux.Handle("POST /api/admin/stations", WrapAdmin(ah.Grid, svc, cfg, limits))
	mux.Handle("GET /api/admin/stations/export", WrapAuthRaw(ah.Download, svc, cfg, limits, true, body))
	mux.Handle("GET /api/admin/stations/{no}", WrapAdmin(ah.Get, svc, cfg, limits))
	mux.Handle("PUT /api/admin/stations/{no}", WrapAdmin(ah.Update, svc, cfg, limits))
	mux.Handle("DELETE /api/admin/stations/{no}", WrapAdmin(ah.Delete, svc, cfg, limits))
	mux.Handle("POST /api/admin/upload", WrapAuthRaw(ah.Upload, svc, cfg, limits, true, cfg.Quotas.MaxUploadBytes))
	mux.Handle("GET /api/admin/debug", WrapAdmin(ah.Debug, svc, cfg, limits))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponseWithCode(w, http.StatusNotFound, dto.ErrorCodeNotFound, "Endpoint not found", nil)
	})
	return mux
}
