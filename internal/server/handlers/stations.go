// Serves the general station grid and its report downloads.

package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/timsamar3/dasimm/internal/export"
	"github.com/timsamar3/dasimm/internal/query"
	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/timsamar3/dasimm/internal/storage"
)

const stationPageLength = 10

// StationHandler serves the master table to every authenticated user.
type StationHandler struct {
	stations *storage.StationService
	template string
	now      func() time.Time
}

// NewStationHandler creates a new station handler.
func NewStationHandler(stations *storage.StationService, template string) *StationHandler {
	return &StationHandler{stations: stations, template: template, now: time.Now}
}

// Grid returns one page of the free-text filtered master table. Rows are
// positional and omit the row number column.
func (h *StationHandler) Grid(ctx context.Context, _ *storage.User, req *dto.GridRequest) (*dto.GridResponse, error) {
	t, err := h.stations.Table()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load stations", "err", err)
		return nil, dto.NewGridError(http.StatusInternalServerError, req.Draw, err)
	}
	t.DropSequence()
	filtered := query.FreeText(t, req.Query())
	v := query.Page(t.Len(), filtered, req.Start, req.PageLength(stationPageLength))
	return positional(req.Draw, v, nil), nil
}

// Export writes the rows matching the form field "search" into the report.
func (h *StationHandler) Export(w http.ResponseWriter, r *http.Request) {
	t, err := h.stations.Table()
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	t.DropSequence()
	filtered := query.FreeText(t, r.FormValue("search"))
	h.sendReport(w, r, filtered.Rows, false)
}

// ExportAll writes every row into the report.
func (h *StationHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	t, err := h.stations.Table()
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	h.sendReport(w, r, t.Rows, true)
}

func (h *StationHandler) sendReport(w http.ResponseWriter, r *http.Request, rows []sheetdb.Record, all bool) {
	name := export.ReportFilename(h.now(), all)
	sendFile(w, r, name, export.ContentType, func(out io.Writer) error {
		return export.Report(out, rows, h.template)
	})
}

// positional renders v as DataTables array rows, each prefixed with lead.
func positional(draw int, v query.View, lead []string) *dto.GridResponse {
	data := make([]any, 0, len(v.Rows))
	for _, r := range v.Rows {
		row := make([]string, 0, len(lead)+len(v.Columns))
		row = append(row, lead...)
		for _, c := range v.Columns {
			row = append(row, r[c])
		}
		data = append(data, row)
	}
	return &dto.GridResponse{
		Draw:            draw,
		RecordsTotal:    v.Total,
		RecordsFiltered: v.Filtered,
		Data:            data,
	}
}
