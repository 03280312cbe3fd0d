package query

import "github.com/timsamar3/dasimm/internal/sheetdb"

// View is one page of a filtered table.
type View struct {
	// Total is the row count before filtering.
	Total int
	// Filtered is the row count after filtering.
	Filtered int
	// Start is the 0-based offset of Rows[0] within the filtered rows.
	Start int
	// Columns is the schema of Rows.
	Columns []string
	Rows    []sheetdb.Record
}

// Page windows the filtered table to [start, start+length). A start past the
// end yields an empty page; a negative length means all remaining rows.
func Page(total int, filtered *sheetdb.Table, start, length int) View {
	n := filtered.Len()
	start = min(max(start, 0), n)
	end := n
	if length >= 0 {
		end = min(start+length, n)
	}
	return View{
		Total:    total,
		Filtered: n,
		Start:    start,
		Columns:  filtered.Columns,
		Rows:     filtered.Rows[start:end],
	}
}
