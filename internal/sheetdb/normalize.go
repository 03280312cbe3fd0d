// Implements cell and table normalization applied at every store boundary.

package sheetdb

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// DefaultNumericHints are the name fragments of columns coerced to numbers.
var DefaultNumericHints = []string{"freq", "bwidth", "long", "lat"}

// emptyTokens are textual stand-ins for a missing value.
var emptyTokens = []string{"nan", "none", "null", "<nil>"}

// Options controls how a Store normalizes tables.
type Options struct {
	// Sequence maintains a 1-based "no" column unless one already exists.
	Sequence bool
	// Columns are always present after normalization, filled with "".
	Columns []string
	// NumericHints are lowercase fragments; a column whose lowercased name
	// contains any of them is coerced to a number or "".
	NumericHints []string
}

// CleanValue trims s and collapses the empty-like tokens to "".
func CleanValue(s string) string {
	s = strings.TrimSpace(s)
	for _, tok := range emptyTokens {
		if strings.EqualFold(s, tok) {
			return ""
		}
	}
	return s
}

// IsNumericColumn reports whether col matches one of hints.
func IsNumericColumn(col string, hints []string) bool {
	l := strings.ToLower(col)
	return slices.ContainsFunc(hints, func(h string) bool {
		return strings.Contains(l, h)
	})
}

// CoerceNumber parses s as a number and renders it in its shortest form.
// Anything unparsable becomes "".
func CoerceNumber(s string) string {
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Normalize cleans t in place according to opts.
//
// Every row ends up holding exactly the schema's columns.
func Normalize(t *Table, opts Options) {
	for _, c := range opts.Columns {
		t.AddColumn(c)
	}
	numeric := make([]bool, len(t.Columns))
	for i, c := range t.Columns {
		numeric[i] = IsNumericColumn(c, opts.NumericHints)
	}
	for i, r := range t.Rows {
		clean := make(Record, len(t.Columns))
		for j, c := range t.Columns {
			v := CleanValue(r[c])
			if numeric[j] {
				v = CoerceNumber(v)
			}
			clean[c] = v
		}
		t.Rows[i] = clean
	}
	if opts.Sequence && len(t.Columns) > 0 && t.Sequence() == "" {
		t.InsertColumn(0, SequenceColumn)
		t.Renumber()
	}
}
