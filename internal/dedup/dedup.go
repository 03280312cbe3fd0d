// Package dedup merges candidate rows into a table with exact-match
// duplicate detection over a fixed column list.
package dedup

import (
	"github.com/timsamar3/dasimm/internal/sheetdb"
)

// DisplayColumns are the columns of the saved inspection subset. They are
// also the columns compared when detecting duplicates.
var DisplayColumns = []string{
	"CLNT_ID",
	"CLNT_NAME",
	"CURR_LIC_NUM",
	"LINK_ID",
	"STN_NAME",
	"STASIUN_LAWAN",
	"SID_LONG",
	"SID_LAT",
	"FREQ",
	"FREQ_PAIR",
	"BWIDTH",
	"EQ_MDL",
	"CITY",
}

// Result is the outcome of a Merge.
type Result struct {
	Table      *sheetdb.Table
	New        int
	Duplicates int
}

// Equal reports whether a and b hold the same cleaned value in every column
// of cols. Other columns are ignored.
func Equal(a, b sheetdb.Record, cols []string) bool {
	for _, c := range cols {
		if sheetdb.CleanValue(a.Get(c)) != sheetdb.CleanValue(b.Get(c)) {
			return false
		}
	}
	return true
}

// Contains reports whether some row of t equals r over cols.
func Contains(t *sheetdb.Table, r sheetdb.Record, cols []string) bool {
	for _, row := range t.Rows {
		if Equal(row, r, cols) {
			return true
		}
	}
	return false
}

// Merge appends to a copy of existing every candidate that does not equal an
// existing row. Candidates are projected to cols and cleaned; their relative
// order is kept. Candidates are only compared against existing rows, not
// against each other.
func Merge(existing *sheetdb.Table, candidates []sheetdb.Record, cols []string) Result {
	out := existing.Clone()
	for _, c := range cols {
		out.AddColumn(c)
	}
	res := Result{Table: out}
	for _, cand := range candidates {
		if Contains(existing, cand, cols) {
			res.Duplicates++
			continue
		}
		row := make(sheetdb.Record, len(out.Columns))
		for _, c := range out.Columns {
			row[c] = sheetdb.CleanValue(cand.Get(c))
		}
		out.Rows = append(out.Rows, row)
		res.New++
	}
	return res
}
