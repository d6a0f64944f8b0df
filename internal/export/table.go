// Package export serializes result tables to CSV, XLSX and YAML.
package export

import (
	"fmt"
	"strconv"

	"github.com/yadkin-swat/subscale/internal/zonal"
)

// Table is a named, column-ordered result set. Row values are int, int32,
// float64 or string.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Column sets written by the two jobs.
var (
	LandCoverColumns = []string{"SUB", "VALUE", "AREA_PERC"}
	TractColumns     = []string{"SUB", "fips", "tract_perc", "sub_perc"}
	WeightedColumns  = []string{"SUB", "svi", "coverage_perc"}
)

// LandCoverTable builds the land-cover output. includeArea appends the
// AREA_KM2 column.
func LandCoverTable(name string, rows []zonal.LandCoverRow, includeArea bool) Table {
	cols := append([]string(nil), LandCoverColumns...)
	if includeArea {
		cols = append(cols, "AREA_KM2")
	}

	t := Table{Name: name, Columns: cols, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		row := []any{r.Sub, r.Value, r.AreaPerc}
		if includeArea {
			row = append(row, r.AreaKM2)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TractTable builds the tract scaling output.
func TractTable(name string, rows []zonal.TractRow) Table {
	t := Table{Name: name, Columns: TractColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Sub, r.FIPS, r.TractPerc, r.SubPerc})
	}
	return t
}

// WeightedTable builds the per-subbasin vulnerability index output.
func WeightedTable(name string, rows []zonal.WeightedRow) Table {
	t := Table{Name: name, Columns: WeightedColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Sub, r.Index, r.Coverage})
	}
	return t
}

// formatValue renders a cell; precision < 0 uses the shortest
// round-tripping float form.
func formatValue(v any, precision int) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', precision, 64)
	default:
		return fmt.Sprint(x)
	}
}
