// Serves the saved inspection subset.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/timsamar3/dasimm/internal/export"
	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/timsamar3/dasimm/internal/storage"
)

const savedCSVFilename = "data_pemeriksaan_tersimpan.csv"

// SavedHandler serves the saved inspection subset.
type SavedHandler struct {
	saved    *storage.SavedService
	template string
}

// NewSavedHandler creates a new saved handler.
func NewSavedHandler(saved *storage.SavedService, template string) *SavedHandler {
	return &SavedHandler{saved: saved, template: template}
}

// List returns every saved row.
func (h *SavedHandler) List(ctx context.Context, _ *storage.User, _ *dto.ListSavedRequest) (*dto.SavedListResponse, error) {
	t, err := h.saved.Table()
	if err != nil {
		return nil, toAPIError(err)
	}
	resp := &dto.SavedListResponse{Columns: h.saved.Columns(), Rows: make([]map[string]string, 0, t.Len())}
	for _, r := range t.Rows {
		resp.Rows = append(resp.Rows, r)
	}
	return resp, nil
}

// Save promotes the selected rows, skipping those already saved.
func (h *SavedHandler) Save(ctx context.Context, user *storage.User, req *dto.SaveRequest) (*dto.SaveResponse, error) {
	rows := make([]sheetdb.Record, len(req.Rows))
	for i, c := range req.Rows {
		rows[i] = sheetdb.Record(c)
	}
	res, err := h.saved.SaveSelected(ctx, rows)
	if err != nil {
		return nil, toAPIError(err)
	}
	slog.InfoContext(ctx, "Rows saved", "by", user.Username, "status", string(res.Status))
	return saveResponse(res), nil
}

// Update replaces the saved row at req.Index.
func (h *SavedHandler) Update(ctx context.Context, _ *storage.User, req *dto.UpdateSavedRequest) (*dto.UpdateSavedResponse, error) {
	row, err := h.saved.UpdateAt(ctx, *req.Index, req.Data)
	if err != nil {
		return nil, resultError(err)
	}
	return &dto.UpdateSavedResponse{
		ResultResponse: dto.ResultResponse{Success: true, Message: "Data berhasil diperbarui"},
		Data:           row,
	}, nil
}

// Delete removes the saved row at req.Index.
func (h *SavedHandler) Delete(ctx context.Context, _ *storage.User, req *dto.DeleteSavedRequest) (*dto.DeleteSavedResponse, error) {
	if err := h.saved.DeleteAt(ctx, *req.Index); err != nil {
		return nil, resultError(err)
	}
	t, err := h.saved.Table()
	if err != nil {
		return nil, resultError(err)
	}
	return &dto.DeleteSavedResponse{
		ResultResponse: dto.ResultResponse{Success: true, Message: "Data berhasil dihapus"},
		RemainingCount: t.Len(),
		DeletedIndex:   *req.Index,
	}, nil
}

// Clear deletes the saved subset.
func (h *SavedHandler) Clear(ctx context.Context, user *storage.User, _ *dto.ClearSavedRequest) (*dto.ClearSavedResponse, error) {
	n, err := h.saved.Clear(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	slog.InfoContext(ctx, "Saved data cleared", "by", user.Username, "rows", n)
	return &dto.ClearSavedResponse{Message: fmt.Sprintf("%d data dihapus", n), Cleared: n}, nil
}

// Export writes the saved subset into the report.
func (h *SavedHandler) Export(w http.ResponseWriter, r *http.Request) {
	t, err := h.saved.Table()
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	sendFile(w, r, export.SavedFilename, export.ContentType, func(out io.Writer) error {
		return export.Report(out, t.Rows, h.template)
	})
}

// ExportCSV writes the saved subset as CSV.
func (h *SavedHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	sendFile(w, r, savedCSVFilename, "text/csv; charset=utf-8", h.saved.ExportCSV)
}

// ImportCSV merges CSV rows into the saved subset. The CSV is either the
// "file" field of a multipart form or the raw request body.
func (h *SavedHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if err := r.ParseMultipartForm(uploadMaxMemory); err == nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		f, _, err := r.FormFile("file")
		if err != nil {
			writeErrorResponse(w, dto.BadRequest("File belum dipilih"))
			return
		}
		defer func() { _ = f.Close() }()
		src = f
	} else if !errors.Is(err, http.ErrNotMultipart) {
		writeErrorResponse(w, uploadFormError(err))
		return
	}
	res, err := h.saved.ImportCSV(r.Context(), src)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse(res))
}

func saveResponse(res *storage.SaveResult) *dto.SaveResponse {
	return &dto.SaveResponse{
		Status:         string(res.Status),
		Message:        res.Message,
		NewCount:       res.New,
		DuplicateCount: res.Duplicates,
	}
}

// resultError maps a saved-row edit failure onto the {success, message}
// reply.
func resultError(err error) error {
	var idx *storage.IndexError
	switch {
	case errors.Is(err, storage.ErrNoSavedData):
		return dto.NewResultError(http.StatusNotFound, "File data tidak ditemukan", err)
	case errors.As(err, &idx):
		return dto.NewResultError(http.StatusBadRequest, fmt.Sprintf("Index tidak valid: %d. Data hanya %d baris", idx.Index, idx.Rows), err)
	}
	return dto.NewResultError(http.StatusInternalServerError, "Terjadi kesalahan: "+err.Error(), err)
}
