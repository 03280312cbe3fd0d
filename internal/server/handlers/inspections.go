// Serves the field-scoped inspection grid.

package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/timsamar3/dasimm/internal/dedup"
	"github.com/timsamar3/dasimm/internal/export"
	"github.com/timsamar3/dasimm/internal/query"
	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/timsamar3/dasimm/internal/storage"
)

const inspectionPageLength = 10

// InspectionHandler filters the master table by column for inspection
// planning.
type InspectionHandler struct {
	stations *storage.StationService
	cols     []string
	template string
}

// NewInspectionHandler creates a new inspection handler. cols falls back to
// dedup.DisplayColumns when empty.
func NewInspectionHandler(stations *storage.StationService, cols []string, template string) *InspectionHandler {
	if len(cols) == 0 {
		cols = dedup.DisplayColumns
	}
	return &InspectionHandler{stations: stations, cols: cols, template: template}
}

// Grid returns one page of the filtered rows as ["", DISPLAY...] arrays. The
// empty lead cell is the client's selection checkbox.
func (h *InspectionHandler) Grid(ctx context.Context, _ *storage.User, req *dto.InspectionGridRequest) (*dto.GridResponse, error) {
	filtered, total, err := h.filter(req.Filters())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load stations", "err", err)
		return nil, dto.NewGridError(http.StatusOK, req.Draw, err)
	}
	v := query.Page(total, filtered, req.Start, req.PageLength(inspectionPageLength))
	v.Columns = h.cols
	return positional(req.Draw, v, []string{""}), nil
}

// Export writes the filtered rows into the report as hasil_filter.xlsx. The
// filters are read from the query string like Grid.
func (h *InspectionHandler) Export(w http.ResponseWriter, r *http.Request) {
	values := make(map[string]string, len(query.FieldMap))
	for _, m := range query.FieldMap {
		values[m.Param] = r.URL.Query().Get(m.Param)
	}
	filtered, _, err := h.filter(values)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	sendFile(w, r, export.FilterFilename, export.ContentType, func(out io.Writer) error {
		return export.Report(out, filtered.Rows, h.template)
	})
}

func (h *InspectionHandler) filter(values map[string]string) (*sheetdb.Table, int, error) {
	t, err := h.stations.Table()
	if err != nil {
		return nil, 0, err
	}
	for _, r := range t.Rows {
		for _, c := range h.cols {
			r[c] = sheetdb.CleanValue(r[c])
		}
	}
	return query.Fields(t, values, query.FieldMap), t.Len(), nil
}
