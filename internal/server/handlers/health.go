package handlers

import (
	"context"
	"log/slog"

	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/storage"
)

// HealthHandler reports the server version and whether the master table can
// be read.
type HealthHandler struct {
	version  string
	stations *storage.StationService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, stations *storage.StationService) *HealthHandler {
	return &HealthHandler{version: version, stations: stations}
}

// Health answers 200 even when the data file is broken; Status is then
// "degraded".
func (h *HealthHandler) Health(ctx context.Context, _ *dto.HealthRequest) (*dto.HealthResponse, error) {
	resp := &dto.HealthResponse{Status: "ok", Version: h.version}
	t, err := h.stations.Table()
	if err != nil {
		slog.WarnContext(ctx, "Health: master table unreadable", "err", err)
		resp.Status = "degraded"
		return resp, nil
	}
	resp.Rows = t.Len()
	return resp, nil
}
