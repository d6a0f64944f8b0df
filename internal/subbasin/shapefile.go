// Package subbasin reads watershed subbasin identifiers and footprints from
// a polygon shapefile.
package subbasin

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultIDField is the attribute holding the subbasin number.
const DefaultIDField = "Subbasin"

// FieldIndex maps lower-cased DBF field names to their column index.
func FieldIndex(fields []shp.Field) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

// Attribute returns the trimmed value of field i of the current record.
func Attribute(r *shp.Reader, i int) string {
	val := strings.TrimRight(r.Attribute(i), "\x00")
	return strings.TrimSpace(val)
}

// ParseID parses an integer DBF value; numeric fields may carry a
// fractional part ("12.000").
func ParseID(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "subbasin: parse id %q", s)
	}
	if f != float64(int(f)) {
		return 0, eris.Errorf("subbasin: id %q is not an integer", s)
	}
	return int(f), nil
}

// ReadIDs returns subbasin IDs in record order. The field name is matched
// case-insensitively; duplicate IDs are rejected.
func ReadIDs(shpPath, field string) ([]int, error) {
	if field == "" {
		field = DefaultIDField
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "subbasin: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	col, ok := FieldIndex(reader.Fields())[strings.ToLower(field)]
	if !ok {
		return nil, eris.Errorf("subbasin: field %q not found in %s", field, shpPath)
	}

	var ids []int
	seen := make(map[int]bool)
	for reader.Next() {
		row, _ := reader.Shape()
		id, err := ParseID(Attribute(reader, col))
		if err != nil {
			return nil, eris.Wrapf(err, "subbasin: record %d", row)
		}
		if seen[id] {
			return nil, eris.Errorf("subbasin: duplicate id %d at record %d", id, row)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "subbasin: read %s", shpPath)
	}

	zap.L().Debug("subbasin: read ids",
		zap.String("path", shpPath),
		zap.Int("count", len(ids)),
	)

	return ids, nil
}
