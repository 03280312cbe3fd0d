package query

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/timsamar3/dasimm/internal/sheetdb"
)

func stations() *sheetdb.Table {
	return &sheetdb.Table{
		Columns: []string{"no", "STN_NAME", "FREQ", "CITY"},
		Rows: []sheetdb.Record{
			{"no": "1", "STN_NAME": "Alpha", "FREQ": "100", "CITY": "Bandung"},
			{"no": "2", "STN_NAME": "Beta", "FREQ": "200", "CITY": "Jakarta"},
			{"no": "3", "STN_NAME": "Gamma Tower", "FREQ": "1000", "CITY": "Bandung Barat"},
		},
	}
}

func names(t *sheetdb.Table) []string {
	var out []string
	for _, r := range t.Rows {
		out = append(out, r.Get("STN_NAME"))
	}
	return out
}

func TestParseKeywords(t *testing.T) {
	got := ParseKeywords("  100 Beta  ２００ x1 ")
	want := Keywords{Numeric: []string{"100", "２００"}, Text: []string{"beta", "x1"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseKeywords() mismatch (-want +got):\n%s", diff)
	}
	if !ParseKeywords("   ").IsZero() {
		t.Error("ParseKeywords(blank).IsZero() = false, want true")
	}
}

func TestFreeText(t *testing.T) {
	tests := []struct {
		search string
		want   []string
	}{
		{"", []string{"Alpha", "Beta", "Gamma Tower"}},
		{"   ", []string{"Alpha", "Beta", "Gamma Tower"}},
		{"100", []string{"Alpha"}},
		{"alp", []string{"Alpha"}},
		{"100 Beta", nil},
		{"10", nil},
		{"bandung", []string{"Alpha", "Gamma Tower"}},
		{"bandung tower", []string{"Gamma Tower"}},
		{"BANDUNG 1000", []string{"Gamma Tower"}},
		{"1", []string{"Alpha"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := names(FreeText(stations(), tt.search))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FreeText(%q) mismatch (-want +got):\n%s", tt.search, diff)
			}
		})
	}
}

func TestFreeText_EmptyReturnsAll(t *testing.T) {
	tbl := stations()
	got := FreeText(tbl, "")
	v := Page(tbl.Len(), got, 0, 10)
	if v.Filtered != v.Total {
		t.Errorf("Filtered = %d, want Total %d", v.Filtered, v.Total)
	}
}

func TestSubstring(t *testing.T) {
	tests := []struct {
		search string
		want   []string
	}{
		{"", []string{"Alpha", "Beta", "Gamma Tower"}},
		{"gamma tower", []string{"Gamma Tower"}},
		{"bandung barat", []string{"Gamma Tower"}},
		{"10", []string{"Alpha", "Gamma Tower"}},
		{"alpha beta", nil},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := names(Substring(stations(), tt.search))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Substring(%q) mismatch (-want +got):\n%s", tt.search, diff)
			}
		})
	}
}

func TestParseAlternatives(t *testing.T) {
	got := ParseAlternatives(" Alpha ; ;BETA;")
	if diff := cmp.Diff([]string{"alpha", "beta"}, got); diff != "" {
		t.Errorf("ParseAlternatives() mismatch (-want +got):\n%s", diff)
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   []string
	}{
		{"no constraint", map[string]string{}, []string{"Alpha", "Beta", "Gamma Tower"}},
		{"blank", map[string]string{"stn_name": " ; "}, []string{"Alpha", "Beta", "Gamma Tower"}},
		{"single", map[string]string{"stn_name": "alp"}, []string{"Alpha"}},
		{"alternatives", map[string]string{"stn_name": "Alpha;Beta"}, []string{"Alpha", "Beta"}},
		{"trailing separator", map[string]string{"stn_name": "Alpha;"}, []string{"Alpha"}},
		{"and across fields", map[string]string{"stn_name": "a", "city": "jakarta"}, []string{"Beta"}},
		{"freq substring", map[string]string{"freq": "100"}, []string{"Alpha", "Gamma Tower"}},
		{"missing column", map[string]string{"client_id": "C1"}, nil},
		{"unknown param ignored", map[string]string{"bogus": "x"}, []string{"Alpha", "Beta", "Gamma Tower"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(Fields(stations(), tt.values, FieldMap))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFields_UnionOfAlternatives(t *testing.T) {
	tbl := stations()
	a := names(Fields(tbl, map[string]string{"stn_name": "alpha"}, FieldMap))
	b := names(Fields(tbl, map[string]string{"stn_name": "beta"}, FieldMap))
	ab := names(Fields(tbl, map[string]string{"stn_name": "alpha;beta"}, FieldMap))
	union := append(slices.Clone(a), b...)
	if diff := cmp.Diff(union, ab); diff != "" {
		t.Errorf("A;B is not the union of A and B (-want +got):\n%s", diff)
	}
}

func TestTruncateSearch(t *testing.T) {
	long := strings.Repeat("é", MaxSearchLen+50)
	got := TruncateSearch(long)
	if n := len([]rune(got)); n != MaxSearchLen {
		t.Errorf("len = %d, want %d", n, MaxSearchLen)
	}
	if got := TruncateSearch("  x  "); got != "x" {
		t.Errorf("TruncateSearch() = %q, want %q", got, "x")
	}
}

func TestPage(t *testing.T) {
	tbl := stations()
	tests := []struct {
		name         string
		start        int
		length       int
		wantNames    []string
		wantFiltered int
	}{
		{"first page", 0, 2, []string{"Alpha", "Beta"}, 3},
		{"second page", 2, 2, []string{"Gamma Tower"}, 3},
		{"past end", 10, 2, nil, 3},
		{"negative start", -5, 1, []string{"Alpha"}, 3},
		{"all", 1, -1, []string{"Beta", "Gamma Tower"}, 3},
		{"zero length", 0, 0, nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Page(tbl.Len(), tbl, tt.start, tt.length)
			if v.Total != 3 {
				t.Errorf("Total = %d, want 3", v.Total)
			}
			if v.Filtered != tt.wantFiltered {
				t.Errorf("Filtered = %d, want %d", v.Filtered, tt.wantFiltered)
			}
			got := names(&sheetdb.Table{Rows: v.Rows})
			if diff := cmp.Diff(tt.wantNames, got); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
