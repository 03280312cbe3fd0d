// Implements master table operations: row edits, uploads and diagnostics.

package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/timsamar3/dasimm/internal/sheetdb"
)

// DefaultRequiredColumns must be present in every uploaded workbook.
var DefaultRequiredColumns = []string{"CLNT_ID", "CLNT_NAME", "LINK_ID", "STN_NAME"}

// UploadMode selects how an upload is combined with the master table.
type UploadMode string

const (
	// UploadAppend concatenates the upload after the existing rows.
	UploadAppend UploadMode = "append"
	// UploadReset replaces the master table and clears the upload area.
	UploadReset UploadMode = "reset"
)

// ParseUploadMode validates a mode string.
func ParseUploadMode(s string) (UploadMode, error) {
	switch m := UploadMode(s); m {
	case UploadAppend, UploadReset:
		return m, nil
	default:
		return "", fmt.Errorf("%w: invalid upload mode %q", ErrValidation, s)
	}
}

// UploadResult summarizes a completed upload.
type UploadResult struct {
	Mode      UploadMode
	Added     int
	TotalRows int
}

// DebugInfo describes the master table file for diagnostics.
type DebugInfo struct {
	FileExists bool             `json:"file_exists"`
	FileSize   int64            `json:"file_size"`
	Rows       int              `json:"rows"`
	Columns    []string         `json:"columns"`
	Sample     []sheetdb.Record `json:"sample"`
}

// StationService manages the master station table.
type StationService struct {
	store    *sheetdb.Store
	uploads  *UploadArea
	codec    sheetdb.Codec
	required []string
}

// NewStationService creates a StationService. required falls back to
// DefaultRequiredColumns when empty.
func NewStationService(store *sheetdb.Store, uploads *UploadArea, required []string) *StationService {
	if len(required) == 0 {
		required = DefaultRequiredColumns
	}
	return &StationService{store: store, uploads: uploads, codec: sheetdb.XLSX{NumericHints: store.Options().NumericHints}, required: required}
}

// Store returns the underlying table store.
func (s *StationService) Store() *sheetdb.Store {
	return s.store
}

// Table returns a copy of the master table.
func (s *StationService) Table() (*sheetdb.Table, error) {
	return s.store.Load()
}

// Get returns the row with the 1-based number no.
func (s *StationService) Get(no int) (sheetdb.Record, error) {
	t, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if no < 1 || no > t.Len() {
		return nil, fmt.Errorf("%w: row %d of %d", ErrNotFound, no, t.Len())
	}
	return t.Rows[no-1], nil
}

// Update replaces every cell of row no except the row number with values.
// Columns absent from values become empty.
func (s *StationService) Update(ctx context.Context, no int, values map[string]string) (sheetdb.Record, error) {
	var updated sheetdb.Record
	err := s.store.Modify(func(t *sheetdb.Table) error {
		if no < 1 || no > t.Len() {
			return fmt.Errorf("%w: row %d of %d", ErrNotFound, no, t.Len())
		}
		seq := t.Sequence()
		row := t.Rows[no-1]
		for _, c := range t.Columns {
			if c == seq {
				continue
			}
			row[c] = values[c]
		}
		updated = row.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Updated station row", "no", no)
	return updated, nil
}

// Delete removes row no and renumbers the remaining rows.
func (s *StationService) Delete(ctx context.Context, no int) error {
	err := s.store.Modify(func(t *sheetdb.Table) error {
		if !t.Delete(no - 1) {
			return fmt.Errorf("%w: row %d of %d", ErrNotFound, no, t.Len())
		}
		t.Renumber()
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted station row", "no", no)
	return nil
}

// Upload ingests a workbook. The file is kept in the upload area; on any
// validation failure it is removed again.
func (s *StationService) Upload(ctx context.Context, name string, r io.Reader, mode UploadMode) (*UploadResult, error) {
	if _, err := ParseUploadMode(string(mode)); err != nil {
		return nil, err
	}
	path, err := s.uploads.Save(name, r)
	if err != nil {
		return nil, err
	}
	incoming, err := s.readUpload(path)
	if err != nil {
		s.uploads.Remove(path)
		return nil, err
	}
	if missing := missingColumns(incoming, s.required); len(missing) > 0 {
		s.uploads.Remove(path)
		return nil, &MissingColumnsError{Missing: missing}
	}
	incoming.DropSequence()
	sheetdb.Normalize(incoming, sheetdb.Options{})

	res := &UploadResult{Mode: mode, Added: incoming.Len()}
	switch mode {
	case UploadAppend:
		err = s.store.Modify(func(t *sheetdb.Table) error {
			t.DropSequence()
			t.Concat(incoming)
			res.TotalRows = t.Len()
			return nil
		})
	case UploadReset:
		if err = s.store.Save(incoming); err == nil {
			res.TotalRows = incoming.Len()
			n, cerr := s.uploads.Clear()
			if cerr != nil {
				slog.WarnContext(ctx, "Failed to clear uploads", "err", cerr)
			}
			slog.DebugContext(ctx, "Cleared uploads", "count", n)
		}
	}
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Ingested upload", "file", name, "mode", string(mode), "added", res.Added, "total", res.TotalRows)
	return res, nil
}

// Info reports file and table statistics.
func (s *StationService) Info() (*DebugInfo, error) {
	fi, err := s.store.Stat()
	if err != nil {
		return nil, err
	}
	info := &DebugInfo{FileExists: fi.Exists, FileSize: fi.Size, Columns: []string{}, Sample: []sheetdb.Record{}}
	if !fi.Exists {
		return info, nil
	}
	t, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	info.Rows = t.Len()
	info.Columns = t.Columns
	info.Sample = t.Rows[:min(3, t.Len())]
	return info, nil
}

func (s *StationService) readUpload(path string) (*sheetdb.Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is generated by UploadArea
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	t, err := s.codec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read workbook: %w", ErrValidation, err)
	}
	return t, nil
}

func missingColumns(t *sheetdb.Table, required []string) []string {
	var missing []string
	for _, c := range required {
		if !slices.Contains(t.Columns, c) {
			missing = append(missing, c)
		}
	}
	return missing
}
