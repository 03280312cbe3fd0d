// Implements the workbook codec on top of excelize.

package sheetdb

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Codec serializes a Table to and from a byte stream.
type Codec interface {
	Decode(r io.Reader) (*Table, error)
	Encode(w io.Writer, t *Table) error
}

// defaultSheet is the sheet excelize creates in a new workbook.
const defaultSheet = "Sheet1"

// XLSX reads the first sheet of an Office Open XML workbook and writes a
// single-sheet workbook.
//
// Columns matching NumericHints are read from the stored cell value rather
// than the number-formatted text, and written as number cells when they
// parse. Other columns are read as displayed.
type XLSX struct {
	// Sheet is the name of the written sheet. Defaults to "Sheet1".
	Sheet string
	// NumericHints defaults to DefaultNumericHints.
	NumericHints []string
}

func (x XLSX) hints() []string {
	if x.NumericHints == nil {
		return DefaultNumericHints
	}
	return x.NumericHints
}

// Decode implements Codec.
func (x XLSX) Decode(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return NewTable(), nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) > 0 {
		mergeRaw(rows, raw, numericIndexes(headerNames(rows[0]), x.hints()))
	}
	return fromRows(rows), nil
}

// numericIndexes returns the positions of the columns matching hints.
func numericIndexes(cols, hints []string) []int {
	var idx []int
	for i, c := range cols {
		if IsNumericColumn(c, hints) {
			idx = append(idx, i)
		}
	}
	return idx
}

// mergeRaw replaces the data cells of rows at idx with their stored values.
func mergeRaw(rows, raw [][]string, idx []int) {
	for i := 1; i < len(rows) && i < len(raw); i++ {
		for _, j := range idx {
			if j >= len(raw[i]) {
				continue
			}
			for len(rows[i]) <= j {
				rows[i] = append(rows[i], "")
			}
			rows[i][j] = raw[i][j]
		}
	}
}

// Encode implements Codec.
func (x XLSX) Encode(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sheet := defaultSheet
	if x.Sheet != "" && x.Sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, x.Sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
		sheet = x.Sheet
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	if len(t.Columns) > 0 {
		if err := sw.SetRow("A1", toCells(t.Columns)); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	numeric := numericIndexes(t.Columns, x.hints())
	for i, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := toCells(t.Values(r))
		for _, j := range numeric {
			if f, ok := parseNumber(cells[j].(string)); ok {
				cells[j] = f
			}
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// fromRows builds a table from raw sheet rows, the first being the header.
func fromRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return NewTable()
	}
	t := NewTable(headerNames(rows[0])...)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(Record, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				rec[c] = row[i]
			} else {
				rec[c] = ""
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

// headerNames trims header cells, names blank ones "Unnamed: <i>" and
// suffixes repeats with ".<n>".
func headerNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		base := strings.TrimSpace(h)
		if base == "" {
			base = "Unnamed: " + strconv.Itoa(i)
		}
		name := base
		for used[name] {
			repeats[base]++
			name = base + "." + strconv.Itoa(repeats[base])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
