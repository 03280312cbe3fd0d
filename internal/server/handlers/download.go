package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
)

// sendFile renders a download into memory first, so a failed render still
// gets a JSON error instead of a truncated file.
func sendFile(w http.ResponseWriter, r *http.Request, name, contentType string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render download", "file", name, "err", err)
		writeErrorResponse(w, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.WarnContext(r.Context(), "Failed to send download", "file", name, "err", err)
	}
}
