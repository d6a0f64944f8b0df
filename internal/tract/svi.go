package tract

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// missingScore is the sentinel published in place of suppressed scores.
const missingScore = -999

// ReadSVI parses a tract vulnerability CSV into FIPS → score. Header names
// are matched case-insensitively. Rows with an empty or sentinel score are
// skipped. A byte order mark selects UTF-16 input; without one UTF-8 is
// assumed.
func ReadSVI(r io.Reader, fipsColumn, valueColumn string) (map[string]float64, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	return parseSVI(reader.Read, fipsColumn, valueColumn)
}

// ReadSVIXLSX reads scores from the first sheet of a workbook laid out
// like the CSV form: one header row, then one row per tract.
func ReadSVIXLSX(path, fipsColumn, valueColumn string) (map[string]float64, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tract: open workbook %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("tract: workbook %s has no sheets", path)
	}

	rows := f.Sheets[0].Rows
	next := 0
	return parseSVI(func() ([]string, error) {
		if next >= len(rows) {
			return nil, io.EOF
		}
		row := rows[next]
		next++
		if row == nil {
			return nil, nil
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		return cells, nil
	}, fipsColumn, valueColumn)
}

// parseSVI consumes records from read until io.EOF.
func parseSVI(read func() ([]string, error), fipsColumn, valueColumn string) (map[string]float64, error) {
	header, err := read()
	if err == io.EOF {
		return nil, eris.New("tract: read svi header: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "tract: read svi header")
	}

	fipsIdx, valueIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, fipsColumn):
			fipsIdx = i
		case strings.EqualFold(h, valueColumn):
			valueIdx = i
		}
	}
	if fipsIdx < 0 {
		return nil, eris.Errorf("tract: svi column %q not found", fipsColumn)
	}
	if valueIdx < 0 {
		return nil, eris.Errorf("tract: svi column %q not found", valueColumn)
	}

	scores := make(map[string]float64)
	var skipped int
	for line := 2; ; line++ {
		rec, err := read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "tract: read svi line %d", line)
		}
		if fipsIdx >= len(rec) || valueIdx >= len(rec) {
			skipped++
			continue
		}

		fips := strings.TrimSpace(rec[fipsIdx])
		raw := strings.TrimSpace(rec[valueIdx])
		if fips == "" || raw == "" {
			skipped++
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "tract: svi line %d value %q", line, raw)
		}
		if v == missingScore {
			skipped++
			continue
		}
		scores[fips] = v
	}

	if skipped > 0 {
		zap.L().Debug("tract: skipped svi rows", zap.Int("skipped", skipped))
	}

	return scores, nil
}

// ReadSVIFile reads scores from a CSV or, for .xlsx paths, a workbook.
func ReadSVIFile(path, fipsColumn, valueColumn string) (map[string]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadSVIXLSX(path, fipsColumn, valueColumn)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tract: open %s", path)
	}
	defer func() { _ = f.Close() }()

	scores, err := ReadSVI(f, fipsColumn, valueColumn)
	if err != nil {
		return nil, eris.Wrapf(err, "tract: parse %s", path)
	}
	return scores, nil
}
