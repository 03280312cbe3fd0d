// Package export renders tables into downloadable workbooks: the fixed
// layout inspection report and a plain sheet of rows.
package export

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of every workbook written by this package.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Download names.
const (
	SavedFilename  = "data_pemeriksaan_tersimpan.xlsx"
	FilterFilename = "hasil_filter.xlsx"
)

const (
	headerRow = 6
	firstRow  = 7
	lastCol   = 29
	sheetName = "Laporan"
)

// cell is one report column and how its value is derived from a row.
type cell struct {
	col   int
	value func(r sheetdb.Record) any
}

func field(name string) func(sheetdb.Record) any {
	return func(r sheetdb.Record) any { return sheetdb.CleanValue(r[name]) }
}

func kiloHertz(r sheetdb.Record) any {
	f, err := strconv.ParseFloat(sheetdb.CleanValue(r["BWIDTH"]), 64)
	if err != nil {
		return ""
	}
	return f / 1000
}

// layout maps record columns onto report columns. Columns 2, 3, 6, 25 and 26
// are left for the inspector to fill in.
var layout = []cell{
	{4, field("CLNT_ID")},
	{5, field("CLNT_NAME")},
	{7, field("CURR_LIC_NUM")},
	{8, field("LINK_ID")},
	{9, field("STN_NAME")},
	{10, field("STASIUN_LAWAN")},
	{11, field("SID_LONG")},
	{12, field("SID_LAT")},
	{13, field("FREQ")},
	{14, field("FREQ_PAIR")},
	{15, kiloHertz},
	{16, field("EQ_MDL")},
	{17, field("STN_NAME")},
	{18, field("STASIUN_LAWAN")},
	{19, field("LONG")},
	{20, field("LAT")},
	{21, field("FREQ")},
	{22, field("FREQ_PAIR")},
	{23, kiloHertz},
	{24, field("EQ_MDL")},
	{27, field("MULAI BEROPERASI")},
	{28, field("KETERANGAN")},
	{29, field("CITY")},
}

// headers are written on row 6 when no template file is available.
var headers = [lastCol]string{
	"NO", "NAMA UPT", "METODE PEMERIKSAAN", "CLNT_ID", "CLNT_NAME", "ALAMAT",
	"CURR_LIC_NUM", "LINK_ID", "STN_NAME (ISR)", "STASIUN_LAWAN (ISR)", "SID_LONG (ISR)", "SID_LAT (ISR)",
	"FREQ (ISR)", "FREQ_PAIR (ISR)", "BWIDTH MHz (ISR)", "EQ_MDL (ISR)",
	"STN_NAME", "STASIUN_LAWAN", "LONG", "LAT", "FREQ", "FREQ_PAIR", "BWIDTH MHz", "EQ_MDL",
	"SERTIFIKAT PERANGKAT", "STATUS", "MULAI BEROPERASI", "KETERANGAN", "CITY",
}

// validation is a drop-down list constraint on one report column.
type validation struct {
	col     int
	options []string
}

var validations = []validation{
	{3, []string{"Inspeksi melalui Open Shelter", "Pemeriksaan melalui Remote Site"}},
	{25, []string{"Ada", "Tidak"}},
	{26, []string{"Sesuai ISR", "Tidak Sesuai Parameter Teknis", "Tidak Berizin", "Tidak Aktif"}},
}

// ReportFilename returns the download name of a report generated at now.
func ReportFilename(now time.Time, all bool) string {
	if all {
		return "laporan_data_sims_all_" + now.Format("20060102_150405") + ".xlsx"
	}
	return "laporan_data_sims_" + now.Format("20060102_150405") + ".xlsx"
}

// Report writes rows into the inspection report layout. When template names
// an existing workbook its active sheet receives the rows; otherwise a new
// workbook with a generated header is used.
func Report(w io.Writer, rows []sheetdb.Record, template string) error {
	f, sheet, err := openTemplate(template)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for i, r := range rows {
		row := firstRow + i
		if err := setCell(f, sheet, 1, row, i+1); err != nil {
			return err
		}
		for _, c := range layout {
			if err := setCell(f, sheet, c.col, row, c.value(r)); err != nil {
				return err
			}
		}
	}
	if len(rows) > 0 {
		last := firstRow + len(rows) - 1
		for _, v := range validations {
			if err := addDropList(f, sheet, v, last); err != nil {
				return err
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Sheet writes t as a plain workbook with a header row.
func Sheet(w io.Writer, t *sheetdb.Table, numeric []string) error {
	return sheetdb.XLSX{Sheet: "Data", NumericHints: numeric}.Encode(w, t)
}

func openTemplate(path string) (*excelize.File, string, error) {
	if path != "" {
		f, err := excelize.OpenFile(path)
		if err == nil {
			return f, f.GetSheetName(f.GetActiveSheetIndex()), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to open report template: %w", err)
		}
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	for i, h := range headers {
		if err := setCell(f, sheetName, i+1, headerRow, h); err != nil {
			_ = f.Close()
			return nil, "", err
		}
	}
	return f, sheetName, nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, name, v)
}

func addDropList(f *excelize.File, sheet string, v validation, last int) error {
	from, err := excelize.CoordinatesToCellName(v.col, firstRow)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(v.col, last)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = from + ":" + to
	if err := dv.SetDropList(v.options); err != nil {
		return err
	}
	return f.AddDataValidation(sheet, dv)
}
