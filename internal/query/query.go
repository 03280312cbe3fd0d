// Provides filtering logic for grid queries over a table.

// Package query implements the grid filters and pagination over sheetdb tables.
//
// Three filter modes are provided: keyword search ([FreeText]), whole-string
// search ([Substring]) and per-column alternatives ([Fields]). All of them are
// pure functions over a table the caller already owns.
package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/timsamar3/dasimm/internal/sheetdb"
)

// MaxSearchLen is the maximum accepted search string length, in characters.
const MaxSearchLen = 1000

// FieldMapping binds a request parameter to the column it filters.
type FieldMapping struct {
	Param  string
	Column string
}

// FieldMap is the set of column-scoped filters accepted by the inspection grid.
var FieldMap = []FieldMapping{
	{Param: "client_id", Column: "CLNT_ID"},
	{Param: "client_name", Column: "CLNT_NAME"},
	{Param: "link_id", Column: "LINK_ID"},
	{Param: "stn_name", Column: "STN_NAME"},
	{Param: "stasiun_lawan", Column: "STASIUN_LAWAN"},
	{Param: "freq", Column: "FREQ"},
	{Param: "city", Column: "CITY"},
}

// Keywords is a search string split into its numeric and text tokens.
type Keywords struct {
	Numeric []string
	Text    []string
}

// IsZero reports whether there are no keywords at all.
func (k Keywords) IsZero() bool {
	return len(k.Numeric) == 0 && len(k.Text) == 0
}

// TruncateSearch trims s and caps it to MaxSearchLen characters.
func TruncateSearch(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxSearchLen {
		return s
	}
	return string([]rune(s)[:MaxSearchLen])
}

// ParseKeywords lowercases search and splits it on whitespace. Tokens made
// only of digits are numeric keywords, everything else is text.
func ParseKeywords(search string) Keywords {
	var k Keywords
	for _, tok := range strings.Fields(strings.ToLower(search)) {
		if isDigits(tok) {
			k.Numeric = append(k.Numeric, tok)
		} else {
			k.Text = append(k.Text, tok)
		}
	}
	return k
}

// FreeText keeps the rows where every numeric keyword equals some cell and
// every text keyword is contained in some cell, case-insensitively.
func FreeText(t *sheetdb.Table, search string) *sheetdb.Table {
	k := ParseKeywords(TruncateSearch(search))
	if k.IsZero() {
		return t
	}
	return filter(t, func(r sheetdb.Record) bool {
		cells := lowerCells(t, r)
		for _, kw := range k.Numeric {
			if !anyCell(cells, func(c string) bool { return c == kw }) {
				return false
			}
		}
		for _, kw := range k.Text {
			if !anyCell(cells, func(c string) bool { return strings.Contains(c, kw) }) {
				return false
			}
		}
		return true
	})
}

// Substring keeps the rows where some cell contains the whole search string,
// case-insensitively.
func Substring(t *sheetdb.Table, search string) *sheetdb.Table {
	s := strings.ToLower(TruncateSearch(search))
	if s == "" {
		return t
	}
	return filter(t, func(r sheetdb.Record) bool {
		return anyCell(lowerCells(t, r), func(c string) bool { return strings.Contains(c, s) })
	})
}

// ParseAlternatives splits v on ';' and returns the trimmed, lowercased,
// non-empty alternatives.
func ParseAlternatives(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ";") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Fields applies the column-scoped filters in mapping. values is keyed by
// request parameter. Alternatives within one parameter are OR-ed, distinct
// parameters are AND-ed. Empty parameters impose no constraint.
func Fields(t *sheetdb.Table, values map[string]string, mapping []FieldMapping) *sheetdb.Table {
	type constraint struct {
		column string
		alts   []string
	}
	var constraints []constraint
	for _, m := range mapping {
		if alts := ParseAlternatives(values[m.Param]); len(alts) > 0 {
			constraints = append(constraints, constraint{column: m.Column, alts: alts})
		}
	}
	if len(constraints) == 0 {
		return t
	}
	return filter(t, func(r sheetdb.Record) bool {
		for _, c := range constraints {
			cell := strings.ToLower(r.Get(c.column))
			if !anyCell(c.alts, func(alt string) bool { return strings.Contains(cell, alt) }) {
				return false
			}
		}
		return true
	})
}

// filter returns a table with t's schema holding the rows keep accepts.
// Rows are shared with t.
func filter(t *sheetdb.Table, keep func(sheetdb.Record) bool) *sheetdb.Table {
	out := &sheetdb.Table{Columns: t.Columns, Rows: make([]sheetdb.Record, 0, len(t.Rows))}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func lowerCells(t *sheetdb.Table, r sheetdb.Record) []string {
	cells := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cells[i] = strings.ToLower(r.Get(c))
	}
	return cells
}

func anyCell(cells []string, fn func(string) bool) bool {
	for _, c := range cells {
		if fn(c) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
