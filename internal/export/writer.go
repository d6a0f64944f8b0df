package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Output formats.
const (
	FormatAuto = "auto"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Options controls serialization.
type Options struct {
	Format    string // auto picks from the file extension
	Precision int    // float digits; -1 for shortest form
}

// Write serializes t to path in the configured format.
func Write(path string, t Table, opts Options) error {
	format := strings.ToLower(opts.Format)
	if format == "" || format == FormatAuto {
		format = FormatCSV
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			format = FormatXLSX
		}
	}

	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(path, t, opts.Precision)
	case FormatXLSX:
		err = WriteXLSX(path, t)
	default:
		return eris.Errorf("export: unknown format %q", opts.Format)
	}
	if err != nil {
		return err
	}

	zap.L().Info("export: wrote table",
		zap.String("table", t.Name),
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("rows", len(t.Rows)),
	)
	return nil
}

// WriteCSV writes t as comma-separated values with a header row.
func WriteCSV(path string, t Table, precision int) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "export: write csv header")
	}

	rec := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			_ = f.Close()
			return eris.Errorf("export: row %d has %d values, want %d", i, len(row), len(t.Columns))
		}
		for j, v := range row {
			rec[j] = formatValue(v, precision)
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return eris.Wrapf(err, "export: write csv row %d", i)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "export: flush csv")
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// maxSheetName is Excel's limit on sheet name length, in characters.
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_",
)

// sheetName makes name acceptable to Excel: forbidden characters become
// underscores and the result is cut to maxSheetName runes.
func sheetName(name string) string {
	name = strings.Trim(sheetNameReplacer.Replace(name), "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if strings.TrimSpace(name) == "" {
		return "Sheet1"
	}
	return name
}

// WriteXLSX writes t to a single-sheet workbook named after the table.
func WriteXLSX(path string, t Table) error {
	f := xlsx.NewFile()

	name := sheetName(t.Name)
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %q", name)
	}

	header := sheet.AddRow()
	for _, c := range t.Columns {
		header.AddCell().SetString(c)
	}

	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return eris.Errorf("export: row %d has %d values, want %d", i, len(row), len(t.Columns))
		}
		r := sheet.AddRow()
		for _, v := range row {
			cell := r.AddCell()
			switch x := v.(type) {
			case int:
				cell.SetInt(x)
			case int32:
				cell.SetInt(int(x))
			case int64:
				cell.SetInt64(x)
			case float64:
				cell.SetFloat(x)
			default:
				cell.SetString(formatValue(v, -1))
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
