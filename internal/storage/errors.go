package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/timsamar3/dasimm/internal/sheetdb"
)

var (
	// ErrNotFound is returned when a row index is outside the table.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when input does not meet ingestion rules.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned by UserService.Authenticate.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSourceUnavailable is returned when a backing file cannot be read.
	ErrSourceUnavailable = sheetdb.ErrSourceUnavailable
	// ErrPersistence is returned when a write did not complete.
	ErrPersistence = sheetdb.ErrPersistence
)

// MissingColumnsError reports required columns absent from an upload.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Is makes MissingColumnsError match ErrValidation.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrValidation
}

// IndexError reports a row index outside the table.
type IndexError struct {
	Index int
	Rows  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range, table has %d rows", e.Index, e.Rows)
}

// Is makes IndexError match ErrNotFound.
func (e *IndexError) Is(target error) bool {
	return target == ErrNotFound
}
