// Defines the in-memory table and record types.

package sheetdb

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// SequenceColumn is the name of the synthetic row number column.
const SequenceColumn = "no"

// sequenceVariants are the spellings recognized as an existing row number column.
var sequenceVariants = []string{"no", "No", "NO"}

// Record is one row, keyed by column name.
type Record map[string]string

// Get returns the cell value for col, or "" if the record has no such column.
func (r Record) Get(col string) string {
	return r[col]
}

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	maps.Copy(c, r)
	return c
}

// Project returns a copy of the record restricted to cols. Missing columns
// are set to "".
func (r Record) Project(cols []string) Record {
	p := make(Record, len(cols))
	for _, c := range cols {
		p[c] = r[c]
	}
	return p
}

// Table is an ordered set of records sharing a column schema.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns), Rows: []Record{}}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = r.Clone()
	}
	return c
}

// HasColumn reports whether col is part of the schema.
func (t *Table) HasColumn(col string) bool {
	return slices.Contains(t.Columns, col)
}

// AddColumn appends col to the schema if absent, filling existing rows with "".
func (t *Table) AddColumn(col string) {
	if t.HasColumn(col) {
		return
	}
	t.Columns = append(t.Columns, col)
	for _, r := range t.Rows {
		r[col] = ""
	}
}

// InsertColumn inserts col at position i. It is a no-op if col already exists.
func (t *Table) InsertColumn(i int, col string) {
	if t.HasColumn(col) {
		return
	}
	i = min(max(i, 0), len(t.Columns))
	t.Columns = slices.Insert(t.Columns, i, col)
	for _, r := range t.Rows {
		r[col] = ""
	}
}

// DropColumns removes the named columns from the schema and every row.
func (t *Table) DropColumns(cols ...string) {
	t.Columns = slices.DeleteFunc(t.Columns, func(c string) bool {
		return slices.Contains(cols, c)
	})
	for _, r := range t.Rows {
		for _, c := range cols {
			delete(r, c)
		}
	}
}

// DropSequence removes any row number column, whatever its spelling.
func (t *Table) DropSequence() {
	t.DropColumns(sequenceVariants...)
}

// Append adds copies of rows to the table. Columns unknown to the schema are
// appended to it, sorted by name.
func (t *Table) Append(rows ...Record) {
	for _, r := range rows {
		for _, c := range slices.Sorted(maps.Keys(r)) {
			t.AddColumn(c)
		}
		t.Rows = append(t.Rows, r.Clone())
	}
}

// Concat appends all rows of o. The schema becomes the union of both, with
// t's columns first and o's new columns after in o's order.
func (t *Table) Concat(o *Table) {
	for _, c := range o.Columns {
		t.AddColumn(c)
	}
	for _, r := range o.Rows {
		n := r.Project(t.Columns)
		t.Rows = append(t.Rows, n)
	}
}

// Delete removes the row at the 0-based index i. It returns false if i is
// out of range.
func (t *Table) Delete(i int) bool {
	if i < 0 || i >= len(t.Rows) {
		return false
	}
	t.Rows = slices.Delete(t.Rows, i, i+1)
	return true
}

// Values returns the cells of r in schema order.
func (t *Table) Values(r Record) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = r[c]
	}
	return out
}

// Sequence returns the name of the row number column, or "" if the table
// has none.
func (t *Table) Sequence() string {
	for _, v := range sequenceVariants {
		if t.HasColumn(v) {
			return v
		}
	}
	return ""
}

// Renumber rewrites the row number column, if any, as 1..N.
func (t *Table) Renumber() {
	col := t.Sequence()
	if col == "" {
		return
	}
	for i, r := range t.Rows {
		r[col] = strconv.Itoa(i + 1)
	}
}

// RowNumber returns the 1-based row number stored in r. Only values made of
// ASCII digits count.
func RowNumber(r Record) (int, bool) {
	for _, v := range sequenceVariants {
		s, ok := r[v]
		if !ok {
			continue
		}
		if s == "" || strings.ContainsFunc(s, func(c rune) bool { return c < '0' || c > '9' }) {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
