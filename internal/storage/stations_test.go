package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/timsamar3/dasimm/internal/sheetdb"
)

func setupStations(t *testing.T) (*StationService, *UploadArea) {
	t.Helper()
	dir := t.TempDir()
	store, err := sheetdb.NewStore(filepath.Join(dir, "data.xlsx"), sheetdb.XLSX{}, sheetdb.Options{Sequence: true, NumericHints: sheetdb.DefaultNumericHints})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	uploads, err := NewUploadArea(filepath.Join(dir, "uploads"), 1<<20)
	if err != nil {
		t.Fatalf("NewUploadArea() error = %v", err)
	}
	return NewStationService(store, uploads, nil), uploads
}

func workbook(t *testing.T, tbl *sheetdb.Table) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := (sheetdb.XLSX{}).Encode(&buf, tbl); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return &buf
}

func masterTable() *sheetdb.Table {
	return &sheetdb.Table{
		Columns: []string{"CLNT_ID", "CLNT_NAME", "LINK_ID", "STN_NAME", "FREQ"},
		Rows: []sheetdb.Record{
			{"CLNT_ID": "C1", "CLNT_NAME": "PT Satu", "LINK_ID": "L1", "STN_NAME": "Alpha", "FREQ": "100"},
			{"CLNT_ID": "C2", "CLNT_NAME": "PT Dua", "LINK_ID": "L2", "STN_NAME": "Beta", "FREQ": "200.0"},
		},
	}
}

func names(t *sheetdb.Table) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Rows {
		out = append(out, r["no"]+":"+r["STN_NAME"])
	}
	return out
}

func uploadCount(t *testing.T, u *UploadArea) int {
	t.Helper()
	entries, err := os.ReadDir(u.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	return len(entries)
}

func TestStationService_GetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupStations(t)
	if err := svc.Store().Save(masterTable()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	t.Run("Get", func(t *testing.T) {
		r, err := svc.Get(2)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if r["STN_NAME"] != "Beta" || r["FREQ"] != "200" {
			t.Errorf("Get(2) = %v", r)
		}
		for _, no := range []int{0, 3, -1} {
			if _, err := svc.Get(no); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(%d) error = %v, want ErrNotFound", no, err)
			}
		}
	})

	t.Run("Update", func(t *testing.T) {
		got, err := svc.Update(ctx, 1, map[string]string{"CLNT_ID": "C9", "STN_NAME": "Alpha 2", "no": "77"})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		want := sheetdb.Record{"no": "1", "CLNT_ID": "C9", "CLNT_NAME": "", "LINK_ID": "", "STN_NAME": "Alpha 2", "FREQ": ""}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Update() mismatch (-want +got):\n%s", diff)
		}
		if _, err := svc.Update(ctx, 5, nil); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update(5) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := svc.Delete(ctx, 1); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		tbl, err := svc.Table()
		if err != nil {
			t.Fatalf("Table() error = %v", err)
		}
		if diff := cmp.Diff([]string{"1:Beta"}, names(tbl)); diff != "" {
			t.Errorf("after Delete mismatch (-want +got):\n%s", diff)
		}
		if err := svc.Delete(ctx, 2); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(2) error = %v, want ErrNotFound", err)
		}
	})
}

func TestStationService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("Append", func(t *testing.T) {
		svc, uploads := setupStations(t)
		if err := svc.Store().Save(masterTable()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		in := &sheetdb.Table{
			Columns: []string{"NO", "CLNT_ID", "CLNT_NAME", "LINK_ID", "STN_NAME", "CITY"},
			Rows: []sheetdb.Record{
				{"NO": "42", "CLNT_ID": "C3", "CLNT_NAME": "PT Tiga", "LINK_ID": "L3", "STN_NAME": "Gamma", "CITY": "Bandung"},
			},
		}
		res, err := svc.Upload(ctx, "baru.xlsx", workbook(t, in), UploadAppend)
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if res.Added != 1 || res.TotalRows != 3 {
			t.Errorf("Upload() = %+v, want Added=1 TotalRows=3", res)
		}
		tbl, err := svc.Table()
		if err != nil {
			t.Fatalf("Table() error = %v", err)
		}
		if diff := cmp.Diff([]string{"1:Alpha", "2:Beta", "3:Gamma"}, names(tbl)); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
		if tbl.HasColumn("NO") {
			t.Errorf("uploaded sequence column kept: %v", tbl.Columns)
		}
		if got := tbl.Rows[0]["CITY"]; got != "" {
			t.Errorf("CITY of existing row = %q, want empty", got)
		}
		if n := uploadCount(t, uploads); n != 1 {
			t.Errorf("uploads = %d, want 1", n)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		svc, uploads := setupStations(t)
		if err := svc.Store().Save(masterTable()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		in := masterTable()
		in.Rows = in.Rows[1:]
		res, err := svc.Upload(ctx, "ganti.xlsx", workbook(t, in), UploadReset)
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if res.TotalRows != 1 {
			t.Errorf("TotalRows = %d, want 1", res.TotalRows)
		}
		tbl, err := svc.Table()
		if err != nil {
			t.Fatalf("Table() error = %v", err)
		}
		if diff := cmp.Diff([]string{"1:Beta"}, names(tbl)); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
		if n := uploadCount(t, uploads); n != 0 {
			t.Errorf("uploads = %d, want 0", n)
		}
	})

	t.Run("MissingColumns", func(t *testing.T) {
		svc, uploads := setupStations(t)
		in := &sheetdb.Table{Columns: []string{"CLNT_ID", "CLNT_NAME"}, Rows: []sheetdb.Record{{"CLNT_ID": "C1", "CLNT_NAME": "x"}}}
		_, err := svc.Upload(ctx, "kurang.xlsx", workbook(t, in), UploadAppend)
		var mce *MissingColumnsError
		if !errors.As(err, &mce) {
			t.Fatalf("Upload() error = %v, want MissingColumnsError", err)
		}
		if diff := cmp.Diff([]string{"LINK_ID", "STN_NAME"}, mce.Missing); diff != "" {
			t.Errorf("Missing mismatch (-want +got):\n%s", diff)
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("error %v does not match ErrValidation", err)
		}
		if n := uploadCount(t, uploads); n != 0 {
			t.Errorf("uploads = %d, want 0", n)
		}
		if fi, _ := svc.Store().Stat(); fi.Exists {
			t.Error("master file created by a rejected upload")
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		svc, _ := setupStations(t)
		tests := []struct {
			name string
			file string
			mode UploadMode
			body string
		}{
			{"BadMode", "a.xlsx", "merge", ""},
			{"BadExtension", "a.csv", UploadAppend, "a,b\n"},
			{"NotAWorkbook", "a.xlsx", UploadAppend, "not a zip"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Upload(ctx, tt.file, strings.NewReader(tt.body), tt.mode)
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Upload() error = %v, want ErrValidation", err)
				}
			})
		}
	})
}

func TestStationService_Info(t *testing.T) {
	svc, _ := setupStations(t)
	info, err := svc.Info()
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.FileExists || info.Rows != 0 {
		t.Errorf("Info() on missing file = %+v", info)
	}
	if err := svc.Store().Save(masterTable()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err = svc.Info()
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if !info.FileExists || info.FileSize == 0 || info.Rows != 2 || len(info.Sample) != 2 {
		t.Errorf("Info() = %+v", info)
	}
	if diff := cmp.Diff([]string{"no", "CLNT_ID", "CLNT_NAME", "LINK_ID", "STN_NAME", "FREQ"}, info.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUploadMode(t *testing.T) {
	for _, s := range []string{"append", "reset"} {
		if m, err := ParseUploadMode(s); err != nil || string(m) != s {
			t.Errorf("ParseUploadMode(%q) = %q, %v", s, m, err)
		}
	}
	if _, err := ParseUploadMode("Append"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseUploadMode(Append) error = %v, want ErrValidation", err)
	}
}
