// Implements the saved inspection subset: deduplicated promotion, row edits
// and CSV interchange.

package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jszwec/csvutil"
	"github.com/timsamar3/dasimm/internal/dedup"
	"github.com/timsamar3/dasimm/internal/sheetdb"
)

// SaveStatus classifies the outcome of SaveSelected.
type SaveStatus string

const (
	// StatusSuccess means every submitted row was new.
	StatusSuccess SaveStatus = "success"
	// StatusPartial means some rows were new and some already saved.
	StatusPartial SaveStatus = "partial"
	// StatusDuplicateAll means every submitted row was already saved.
	StatusDuplicateAll SaveStatus = "duplicate_all"
	// StatusWarning means no rows were submitted.
	StatusWarning SaveStatus = "warning"
)

// SaveResult summarizes a SaveSelected call.
type SaveResult struct {
	Status     SaveStatus
	Message    string
	New        int
	Duplicates int
}

// InspectionRow is the typed form of a saved row, used for CSV interchange.
type InspectionRow struct {
	ClientID    string `csv:"CLNT_ID"`
	ClientName  string `csv:"CLNT_NAME"`
	LicenseNum  string `csv:"CURR_LIC_NUM"`
	LinkID      string `csv:"LINK_ID"`
	StationName string `csv:"STN_NAME"`
	Counterpart string `csv:"STASIUN_LAWAN"`
	Longitude   string `csv:"SID_LONG"`
	Latitude    string `csv:"SID_LAT"`
	Freq        string `csv:"FREQ"`
	FreqPair    string `csv:"FREQ_PAIR"`
	Bandwidth   string `csv:"BWIDTH"`
	EquipModel  string `csv:"EQ_MDL"`
	City        string `csv:"CITY"`
}

// Record converts the row to a sheetdb.Record keyed by column name.
func (r *InspectionRow) Record() sheetdb.Record {
	return sheetdb.Record{
		"CLNT_ID":       r.ClientID,
		"CLNT_NAME":     r.ClientName,
		"CURR_LIC_NUM":  r.LicenseNum,
		"LINK_ID":       r.LinkID,
		"STN_NAME":      r.StationName,
		"STASIUN_LAWAN": r.Counterpart,
		"SID_LONG":      r.Longitude,
		"SID_LAT":       r.Latitude,
		"FREQ":          r.Freq,
		"FREQ_PAIR":     r.FreqPair,
		"BWIDTH":        r.Bandwidth,
		"EQ_MDL":        r.EquipModel,
		"CITY":          r.City,
	}
}

// InspectionRowFrom builds an InspectionRow from a record.
func InspectionRowFrom(rec sheetdb.Record) InspectionRow {
	return InspectionRow{
		ClientID:    rec.Get("CLNT_ID"),
		ClientName:  rec.Get("CLNT_NAME"),
		LicenseNum:  rec.Get("CURR_LIC_NUM"),
		LinkID:      rec.Get("LINK_ID"),
		StationName: rec.Get("STN_NAME"),
		Counterpart: rec.Get("STASIUN_LAWAN"),
		Longitude:   rec.Get("SID_LONG"),
		Latitude:    rec.Get("SID_LAT"),
		Freq:        rec.Get("FREQ"),
		FreqPair:    rec.Get("FREQ_PAIR"),
		Bandwidth:   rec.Get("BWIDTH"),
		EquipModel:  rec.Get("EQ_MDL"),
		City:        rec.Get("CITY"),
	}
}

// SavedService manages the saved inspection subset.
type SavedService struct {
	store *sheetdb.Store
	cols  []string
}

// SavedOptions returns the store options for the saved subset over cols.
func SavedOptions(cols []string) sheetdb.Options {
	return sheetdb.Options{Columns: cols}
}

// NewSavedService creates a SavedService over store. cols falls back to
// dedup.DisplayColumns when empty.
func NewSavedService(store *sheetdb.Store, cols []string) *SavedService {
	if len(cols) == 0 {
		cols = dedup.DisplayColumns
	}
	return &SavedService{store: store, cols: cols}
}

// Columns returns the saved subset columns.
func (s *SavedService) Columns() []string {
	return s.cols
}

// Table returns a copy of the saved subset.
func (s *SavedService) Table() (*sheetdb.Table, error) {
	return s.store.Load()
}

// SaveSelected merges rows into the saved subset, skipping rows already
// present. An unreadable saved file is replaced.
func (s *SavedService) SaveSelected(ctx context.Context, rows []sheetdb.Record) (*SaveResult, error) {
	if len(rows) == 0 {
		return &SaveResult{Status: StatusWarning, Message: "Tidak ada data yang dipilih"}, nil
	}
	var res dedup.Result
	err := s.store.Modify(func(t *sheetdb.Table) error {
		res = dedup.Merge(t, rows, s.cols)
		*t = *res.Table
		return nil
	})
	if errors.Is(err, ErrSourceUnavailable) {
		slog.WarnContext(ctx, "Saved data unreadable, starting a new file", "err", err)
		res = dedup.Merge(sheetdb.NewTable(s.cols...), rows, s.cols)
		err = s.store.Save(res.Table)
	}
	if err != nil {
		return nil, err
	}
	out := &SaveResult{New: res.New, Duplicates: res.Duplicates}
	switch {
	case res.New == 0:
		out.Status = StatusDuplicateAll
		out.Message = fmt.Sprintf("%d Data Sudah Ada Tersimpan", res.Duplicates)
	case res.Duplicates > 0:
		out.Status = StatusPartial
		out.Message = fmt.Sprintf("%d data disimpan, %d data sudah ada", res.New, res.Duplicates)
	default:
		out.Status = StatusSuccess
		out.Message = fmt.Sprintf("%d data disimpan", res.New)
	}
	slog.InfoContext(ctx, "Saved selected rows", "new", res.New, "duplicates", res.Duplicates)
	return out, nil
}

// UpdateAt replaces the saved row at the 0-based index. Columns absent from
// values become empty.
func (s *SavedService) UpdateAt(ctx context.Context, index int, values map[string]string) (sheetdb.Record, error) {
	if err := s.requireFile(); err != nil {
		return nil, err
	}
	var updated sheetdb.Record
	err := s.store.Modify(func(t *sheetdb.Table) error {
		if index < 0 || index >= t.Len() {
			return &IndexError{Index: index, Rows: t.Len()}
		}
		row := t.Rows[index]
		for _, c := range s.cols {
			row[c] = sheetdb.CleanValue(values[c])
		}
		updated = row.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Updated saved row", "index", index)
	return updated, nil
}

// DeleteAt removes the saved row at the 0-based index.
func (s *SavedService) DeleteAt(ctx context.Context, index int) error {
	if err := s.requireFile(); err != nil {
		return err
	}
	err := s.store.Modify(func(t *sheetdb.Table) error {
		if !t.Delete(index) {
			return &IndexError{Index: index, Rows: t.Len()}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted saved row", "index", index)
	return nil
}

// Clear deletes the saved subset and returns how many rows it held.
func (s *SavedService) Clear(ctx context.Context) (int, error) {
	n := 0
	if t, err := s.store.Load(); err == nil {
		n = t.Len()
	} else {
		slog.WarnContext(ctx, "Clearing unreadable saved data", "err", err)
	}
	if err := s.store.Remove(); err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Cleared saved data", "rows", n)
	return n, nil
}

// ErrNoSavedData is returned by row edits when nothing was ever saved.
var ErrNoSavedData = fmt.Errorf("%w: no saved data", ErrNotFound)

func (s *SavedService) requireFile() error {
	fi, err := s.store.Stat()
	if err != nil {
		return err
	}
	if !fi.Exists {
		return ErrNoSavedData
	}
	return nil
}

// ExportCSV writes the saved subset as CSV with a header row.
func (s *SavedService) ExportCSV(w io.Writer) error {
	t, err := s.store.Load()
	if err != nil {
		return err
	}
	rows := make([]InspectionRow, 0, t.Len())
	for _, r := range t.Rows {
		rows = append(rows, InspectionRowFrom(r))
	}
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		err = enc.EncodeHeader(InspectionRow{})
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return fmt.Errorf("failed to encode saved data: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV reads rows from CSV and merges them like SaveSelected.
func (s *SavedService) ImportCSV(ctx context.Context, r io.Reader) (*SaveResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows []InspectionRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: invalid CSV: %w", ErrValidation, err)
	}
	recs := make([]sheetdb.Record, len(rows))
	for i := range rows {
		recs[i] = rows[i].Record()
	}
	return s.SaveSelected(ctx, recs)
}
