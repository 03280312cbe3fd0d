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
	"github.com/timsamar3/dasimm/internal/dedup"
	"github.com/timsamar3/dasimm/internal/sheetdb"
)

func setupSaved(t *testing.T) *SavedService {
	t.Helper()
	store, err := sheetdb.NewStore(filepath.Join(t.TempDir(), "saved.xlsx"), sheetdb.XLSX{}, SavedOptions(dedup.DisplayColumns))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return NewSavedService(store, nil)
}

func inspection(id, name string) sheetdb.Record {
	return sheetdb.Record{"CLNT_ID": id, "STN_NAME": name, "FREQ": "100"}
}

func TestSavedService_SaveSelected(t *testing.T) {
	ctx := context.Background()
	svc := setupSaved(t)

	tests := []struct {
		name   string
		rows   []sheetdb.Record
		status SaveStatus
		msg    string
		total  int
	}{
		{"Empty", nil, StatusWarning, "Tidak ada data yang dipilih", 0},
		{"AllNew", []sheetdb.Record{inspection("C1", "Alpha"), inspection("C2", "Beta")}, StatusSuccess, "2 data disimpan", 2},
		{"AllDuplicate", []sheetdb.Record{inspection("C1", "Alpha")}, StatusDuplicateAll, "1 Data Sudah Ada Tersimpan", 2},
		{"Partial", []sheetdb.Record{inspection("C2", "Beta"), inspection("C3", "Gamma")}, StatusPartial, "1 data disimpan, 1 data sudah ada", 3},
		{"DuplicateAfterCleaning", []sheetdb.Record{{"CLNT_ID": " C3 ", "STN_NAME": "Gamma", "FREQ": "100", "CITY": "nan"}}, StatusDuplicateAll, "1 Data Sudah Ada Tersimpan", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.SaveSelected(ctx, tt.rows)
			if err != nil {
				t.Fatalf("SaveSelected() error = %v", err)
			}
			if res.Status != tt.status || res.Message != tt.msg {
				t.Errorf("SaveSelected() = %q %q, want %q %q", res.Status, res.Message, tt.status, tt.msg)
			}
			tbl, err := svc.Table()
			if err != nil {
				t.Fatalf("Table() error = %v", err)
			}
			if tbl.Len() != tt.total {
				t.Errorf("saved rows = %d, want %d", tbl.Len(), tt.total)
			}
		})
	}
}

func TestSavedService_SaveSelected_Columns(t *testing.T) {
	svc := setupSaved(t)
	rows := []sheetdb.Record{{"CLNT_ID": "C1", "STN_NAME": "Alpha", "EXTRA": "x"}}
	if _, err := svc.SaveSelected(context.Background(), rows); err != nil {
		t.Fatalf("SaveSelected() error = %v", err)
	}
	tbl, err := svc.Table()
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if diff := cmp.Diff(dedup.DisplayColumns, tbl.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestSavedService_SaveSelected_ReplacesCorrupt(t *testing.T) {
	svc := setupSaved(t)
	path := svc.store.Path()
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := svc.SaveSelected(context.Background(), []sheetdb.Record{inspection("C1", "Alpha")})
	if err != nil {
		t.Fatalf("SaveSelected() error = %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", res.Status, StatusSuccess)
	}
	tbl, err := svc.Table()
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if tbl.Len() != 1 {
		t.Errorf("rows = %d, want 1", tbl.Len())
	}
}

func TestSavedService_UpdateDeleteClear(t *testing.T) {
	ctx := context.Background()
	svc := setupSaved(t)
	if _, err := svc.SaveSelected(ctx, []sheetdb.Record{inspection("C1", "Alpha"), inspection("C2", "Beta")}); err != nil {
		t.Fatalf("SaveSelected() error = %v", err)
	}

	got, err := svc.UpdateAt(ctx, 1, map[string]string{"CLNT_ID": "C2", "STN_NAME": " Beta 2 ", "CITY": "null"})
	if err != nil {
		t.Fatalf("UpdateAt() error = %v", err)
	}
	if got["STN_NAME"] != "Beta 2" || got["FREQ"] != "" || got["CITY"] != "" {
		t.Errorf("UpdateAt() = %v", got)
	}
	for _, i := range []int{-1, 2} {
		if _, err := svc.UpdateAt(ctx, i, nil); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateAt(%d) error = %v, want ErrNotFound", i, err)
		}
		if err := svc.DeleteAt(ctx, i); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteAt(%d) error = %v, want ErrNotFound", i, err)
		}
	}

	if err := svc.DeleteAt(ctx, 0); err != nil {
		t.Fatalf("DeleteAt() error = %v", err)
	}
	tbl, err := svc.Table()
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if tbl.Len() != 1 || tbl.Rows[0]["STN_NAME"] != "Beta 2" {
		t.Errorf("after DeleteAt rows = %v", tbl.Rows)
	}

	n, err := svc.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if fi, _ := svc.store.Stat(); fi.Exists {
		t.Error("saved file still exists after Clear")
	}
	if n, err := svc.Clear(ctx); err != nil || n != 0 {
		t.Errorf("second Clear() = %d, %v", n, err)
	}
}

func TestSavedService_CSV(t *testing.T) {
	ctx := context.Background()
	src := setupSaved(t)

	var empty bytes.Buffer
	if err := src.ExportCSV(&empty); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	want := strings.Join(dedup.DisplayColumns, ",") + "\n"
	if empty.String() != want {
		t.Errorf("ExportCSV() of empty subset = %q, want %q", empty.String(), want)
	}

	if _, err := src.SaveSelected(ctx, []sheetdb.Record{inspection("C1", "Alpha"), inspection("C2", "Beta, Barat")}); err != nil {
		t.Fatalf("SaveSelected() error = %v", err)
	}
	var buf bytes.Buffer
	if err := src.ExportCSV(&buf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	dst := setupSaved(t)
	res, err := dst.ImportCSV(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Status != StatusSuccess || res.New != 2 {
		t.Errorf("ImportCSV() = %+v", res)
	}
	a, _ := src.Table()
	b, _ := dst.Table()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("imported table mismatch (-want +got):\n%s", diff)
	}

	res, err = dst.ImportCSV(ctx, strings.NewReader("CLNT_ID,STN_NAME,FREQ\nC1,Alpha,100\nC9,Omega,\n"))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Status != StatusPartial {
		t.Errorf("Status = %q, want %q", res.Status, StatusPartial)
	}

	if _, err := dst.ImportCSV(ctx, strings.NewReader("CLNT_ID,STN_NAME\na,b,c\n")); !errors.Is(err, ErrValidation) {
		t.Errorf("ImportCSV(malformed) error = %v, want ErrValidation", err)
	}
}

func TestSavedService_EditWithoutFile(t *testing.T) {
	ctx := context.Background()
	svc := setupSaved(t)
	if _, err := svc.UpdateAt(ctx, 0, nil); !errors.Is(err, ErrNoSavedData) {
		t.Errorf("UpdateAt() error = %v, want ErrNoSavedData", err)
	}
	if err := svc.DeleteAt(ctx, 0); !errors.Is(err, ErrNoSavedData) {
		t.Errorf("DeleteAt() error = %v, want ErrNoSavedData", err)
	}
	if _, err := svc.SaveSelected(ctx, []sheetdb.Record{inspection("C1", "Alpha")}); err != nil {
		t.Fatalf("SaveSelected() error = %v", err)
	}
	var ie *IndexError
	if err := svc.DeleteAt(ctx, 3); !errors.As(err, &ie) || ie.Rows != 1 {
		t.Errorf("DeleteAt(3) error = %v, want IndexError with 1 row", err)
	}
}
