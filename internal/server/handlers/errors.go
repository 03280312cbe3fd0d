// Provides helper functions for writing error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/timsamar3/dasimm/internal/server/dto"
	"github.com/timsamar3/dasimm/internal/storage"
)

// toAPIError maps a storage error onto an API error. Errors that already
// carry a status are returned unchanged.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var ews dto.ErrorWithStatus
	if errors.As(err, &ews) {
		return err
	}
	if mbe := checkMaxBytesError(err); mbe != nil {
		return dto.PayloadTooLarge(mbe.Limit)
	}
	var missing *storage.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return dto.NewAPIError(http.StatusBadRequest, dto.ErrorCodeMissingColumns, "Kolom penting tidak ditemukan").
			WithDetail("missing", missing.Missing).Wrap(err)
	case errors.Is(err, storage.ErrNotFound):
		return dto.NotFound("Data").Wrap(err)
	case errors.Is(err, storage.ErrValidation):
		return dto.BadRequest("Data tidak valid").Wrap(err)
	case errors.Is(err, storage.ErrSourceUnavailable):
		return dto.ServiceUnavailable("File data tidak dapat dibaca").Wrap(err)
	case errors.Is(err, storage.ErrPersistence):
		return dto.NewAPIError(http.StatusInternalServerError, dto.ErrorCodeStorageError, "Gagal menyimpan data").Wrap(err)
	}
	return dto.InternalWithError("Terjadi kesalahan", err)
}

// writeErrorResponse writes err as a JSON response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := dto.ErrorCodeInternal
	message := "internal error"
	var details map[string]any

	var ewsErr dto.ErrorWithStatus
	if errors.As(toAPIError(err), &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}
	writeJSON(w, statusCode, dto.ErrorResponse{
		Error:   dto.ErrorDetails{Code: errorCode, Message: message},
		Details: details,
	})
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

func checkMaxBytesError(err error) *http.MaxBytesError {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return mbe
	}
	return nil
}
