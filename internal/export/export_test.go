package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/xuri/excelize/v2"
)

func reportRows() []sheetdb.Record {
	return []sheetdb.Record{
		{"CLNT_ID": "C1", "CLNT_NAME": "PT Satu", "STN_NAME": "Alpha", "BWIDTH": "12500", "LONG": "107.6", "CITY": "Bandung"},
		{"CLNT_ID": "C2", "STN_NAME": "Beta", "BWIDTH": "lebar", "KETERANGAN": "nan"},
	}
}

func openReport(t *testing.T, buf *bytes.Buffer) (*excelize.File, string) {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f, f.GetSheetName(f.GetActiveSheetIndex())
}

func cellValues(t *testing.T, f *excelize.File, sheet string, cells ...string) []string {
	t.Helper()
	out := make([]string, len(cells))
	for i, c := range cells {
		v, err := f.GetCellValue(sheet, c)
		if err != nil {
			t.Fatalf("GetCellValue(%s) error = %v", c, err)
		}
		out[i] = v
	}
	return out
}

func TestReport_Generated(t *testing.T) {
	var buf bytes.Buffer
	if err := Report(&buf, reportRows(), filepath.Join(t.TempDir(), "missing.xlsx")); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	f, sheet := openReport(t, &buf)
	if sheet != sheetName {
		t.Errorf("sheet = %q, want %q", sheet, sheetName)
	}

	got := cellValues(t, f, sheet, "A6", "D6", "AC6", "A7", "D7", "E7", "I7", "Q7", "O7", "W7", "S7", "AC7", "A8", "O8", "AB8")
	want := []string{"NO", "CLNT_ID", "CITY", "1", "C1", "PT Satu", "Alpha", "Alpha", "12.5", "12.5", "107.6", "Bandung", "2", "", ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}

	dvs, err := f.GetDataValidations(sheet)
	if err != nil {
		t.Fatalf("GetDataValidations() error = %v", err)
	}
	var refs []string
	for _, dv := range dvs {
		refs = append(refs, dv.Sqref)
	}
	if diff := cmp.Diff([]string{"C7:C8", "Y7:Y8", "Z7:Z8"}, refs); diff != "" {
		t.Errorf("validations mismatch (-want +got):\n%s", diff)
	}
}

func TestReport_Template(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.xlsx")
	tpl := excelize.NewFile()
	if err := tpl.SetSheetName("Sheet1", "Format"); err != nil {
		t.Fatal(err)
	}
	if err := tpl.SetCellValue("Format", "A1", "LAPORAN PEMERIKSAAN"); err != nil {
		t.Fatal(err)
	}
	if err := tpl.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = tpl.Close()

	var buf bytes.Buffer
	if err := Report(&buf, reportRows()[:1], path); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	f, sheet := openReport(t, &buf)
	if sheet != "Format" {
		t.Errorf("sheet = %q, want Format", sheet)
	}
	got := cellValues(t, f, sheet, "A1", "A6", "D7")
	if diff := cmp.Diff([]string{"LAPORAN PEMERIKSAAN", "", "C1"}, got); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Report(&buf, nil, ""); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	f, sheet := openReport(t, &buf)
	dvs, err := f.GetDataValidations(sheet)
	if err != nil {
		t.Fatalf("GetDataValidations() error = %v", err)
	}
	if len(dvs) != 0 {
		t.Errorf("validations = %d, want 0", len(dvs))
	}
}

func TestSheet(t *testing.T) {
	tbl := &sheetdb.Table{
		Columns: []string{"no", "STN_NAME"},
		Rows:    []sheetdb.Record{{"no": "1", "STN_NAME": "Alpha"}},
	}
	var buf bytes.Buffer
	if err := Sheet(&buf, tbl, nil); err != nil {
		t.Fatalf("Sheet() error = %v", err)
	}
	got, err := (sheetdb.XLSX{}).Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(tbl, got); diff != "" {
		t.Errorf("Sheet() round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReportFilename(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	if got := ReportFilename(now, false); got != "laporan_data_sims_20240305_140709.xlsx" {
		t.Errorf("ReportFilename() = %q", got)
	}
	if got := ReportFilename(now, true); got != "laporan_data_sims_all_20240305_140709.xlsx" {
		t.Errorf("ReportFilename(all) = %q", got)
	}
}
