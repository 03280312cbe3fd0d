// Serves the admin grid, row edits, uploads and diagnostics.

package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/timsamar3/dasimm/internal/export"
	"github.com/timsamar3/dasimm/internal/query"
	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/timsamar3/dasimm/internal/storage"
)

const (
	adminPageLength = 25
	masterFilename  = "data_sims.xlsx"
	uploadMaxMemory = 8 << 20
)

// noAction is rendered when a row has no usable number.
const noAction = "<span class='text-muted'>-</span>"

var actionTmpl = template.Must(template.New("aksi").Parse(
	`<a href="/admin/edit/{{.}}" class="btn btn-warning btn-sm mr-1" title="Edit">✏️</a>` +
		`<a href="/admin/hapus/{{.}}" class="btn btn-danger btn-sm delete-btn" title="Hapus" onclick="return confirm('Yakin hapus data ini?')">🗑️</a>`))

// AdminHandler serves the admin-only master table operations.
type AdminHandler struct {
	stations *storage.StationService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(stations *storage.StationService) *AdminHandler {
	return &AdminHandler{stations: stations}
}

// Grid returns one page of the substring filtered master table. Rows are
// column maps with an extra "aksi" cell holding the edit and delete links.
func (h *AdminHandler) Grid(ctx context.Context, _ *storage.User, req *dto.GridRequest) (*dto.GridResponse, error) {
	t, err := h.stations.Table()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load stations", "err", err)
		return nil, dto.NewGridError(http.StatusOK, req.Draw, err)
	}
	if t.Sequence() == "" {
		t.InsertColumn(0, sheetdb.SequenceColumn)
		t.Renumber()
	}
	filtered := query.Substring(t, query.TruncateSearch(req.Query()))
	v := query.Page(t.Len(), filtered, req.Start, req.PageLength(adminPageLength))
	data := make([]any, 0, len(v.Rows))
	for _, r := range v.Rows {
		row := make(map[string]string, len(v.Columns)+1)
		for _, c := range v.Columns {
			row[c] = r[c]
		}
		row["aksi"] = actionLinks(r)
		data = append(data, row)
	}
	return &dto.GridResponse{
		Draw:            req.Draw,
		RecordsTotal:    v.Total,
		RecordsFiltered: v.Filtered,
		Data:            data,
	}, nil
}

// actionLinks renders the edit and delete links for the row number of r, or
// the placeholder when it has none.
func actionLinks(r sheetdb.Record) string {
	n, ok := sheetdb.RowNumber(r)
	if !ok {
		return noAction
	}
	var b bytes.Buffer
	if err := actionTmpl.Execute(&b, n); err != nil {
		return noAction
	}
	return b.String()
}

// Get returns one master table row.
func (h *AdminHandler) Get(ctx context.Context, _ *storage.User, req *dto.StationRequest) (*dto.StationResponse, error) {
	t, err := h.stations.Table()
	if err != nil {
		return nil, toAPIError(err)
	}
	row, err := h.stations.Get(req.No)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &dto.StationResponse{No: req.No, Columns: t.Columns, Data: row}, nil
}

// Update replaces the cells of one master table row.
func (h *AdminHandler) Update(ctx context.Context, user *storage.User, req *dto.UpdateStationRequest) (*dto.StationResponse, error) {
	row, err := h.stations.Update(ctx, req.No, req.Data)
	if err != nil {
		return nil, toAPIError(err)
	}
	slog.InfoContext(ctx, "Station edited", "no", req.No, "by", user.Username)
	t, err := h.stations.Table()
	if err != nil {
		return nil, toAPIError(err)
	}
	return &dto.StationResponse{No: req.No, Columns: t.Columns, Data: row}, nil
}

// Delete removes one master table row and renumbers the rest.
func (h *AdminHandler) Delete(ctx context.Context, user *storage.User, req *dto.StationRequest) (*dto.DeleteStationResponse, error) {
	if err := h.stations.Delete(ctx, req.No); err != nil {
		return nil, toAPIError(err)
	}
	slog.InfoContext(ctx, "Station deleted", "no", req.No, "by", user.Username)
	t, err := h.stations.Table()
	if err != nil {
		return nil, toAPIError(err)
	}
	return &dto.DeleteStationResponse{Message: "Data berhasil dihapus", Rows: t.Len()}, nil
}

// Debug reports the master table file state.
func (h *AdminHandler) Debug(ctx context.Context, _ *storage.User, _ *dto.DebugRequest) (*dto.DebugResponse, error) {
	info, err := h.stations.Info()
	if err != nil {
		return nil, toAPIError(err)
	}
	resp := &dto.DebugResponse{
		FileExists: info.FileExists,
		FileSize:   info.FileSize,
		Rows:       info.Rows,
		Columns:    info.Columns,
		Sample:     make([]map[string]string, 0, len(info.Sample)),
	}
	for _, r := range info.Sample {
		resp.Sample = append(resp.Sample, r)
	}
	return resp, nil
}

// Upload ingests a multipart workbook from the "file" field. The "mode"
// field is "append" (default) or "reset".
func (h *AdminHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(uploadMaxMemory); err != nil {
		writeErrorResponse(w, uploadFormError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, dto.BadRequest("File belum dipilih"))
		return
	}
	defer func() { _ = f.Close() }()

	modeStr := r.FormValue("mode")
	if modeStr == "" {
		modeStr = string(storage.UploadAppend)
	}
	mode, err := storage.ParseUploadMode(modeStr)
	if err != nil {
		writeErrorResponse(w, dto.BadRequest("Mode upload tidak valid"))
		return
	}
	res, err := h.stations.Upload(ctx, fh.Filename, f, mode)
	if err != nil {
		slog.WarnContext(ctx, "Upload rejected", "file", fh.Filename, "err", err)
		writeErrorResponse(w, err)
		return
	}
	msg := fmt.Sprintf("Data berhasil ditambah. Total: %d baris", res.TotalRows)
	if mode == storage.UploadReset {
		msg = fmt.Sprintf("Data berhasil disimpan (Upload Ulang). Total: %d baris", res.TotalRows)
	}
	writeJSON(w, http.StatusOK, &dto.UploadResponse{
		Message:   msg,
		Mode:      string(res.Mode),
		Added:     res.Added,
		TotalRows: res.TotalRows,
	})
}

// Download writes the master table as a plain workbook.
func (h *AdminHandler) Download(w http.ResponseWriter, r *http.Request) {
	t, err := h.stations.Table()
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	sendFile(w, r, masterFilename, export.ContentType, func(out io.Writer) error {
		return export.Sheet(out, t, h.stations.Store().Options().NumericHints)
	})
}

func uploadFormError(err error) error {
	if mbe := checkMaxBytesError(err); mbe != nil {
		return dto.PayloadTooLarge(mbe.Limit)
	}
	return dto.BadRequest("Invalid multipart form").Wrap(err)
}
