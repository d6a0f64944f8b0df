// Package tract resolves census tract raster codes to FIPS identifiers,
// total tract areas and vulnerability scores.
package tract

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/raster"
	"github.com/yadkin-swat/subscale/internal/subbasin"
)

// Attributes describes one tract as coded in the tract raster.
type Attributes struct {
	FIPS    string
	AreaKM2 float64
}

// Table maps tract raster values to their attributes.
type Table map[int32]Attributes

// FromRaster derives a table from a whole-raster class count: the FIPS is
// the raster value and the area is its cell count times cellArea.
func FromRaster(classes []raster.ClassCount, cellArea float64) Table {
	t := make(Table, len(classes))
	for _, c := range classes {
		t[c.Value] = Attributes{
			FIPS:    strconv.FormatInt(int64(c.Value), 10),
			AreaKM2: float64(c.Count) * cellArea,
		}
	}
	return t
}

// Fill completes t from base: values missing in t are copied, and rows
// without a positive area take the base area.
func (t Table) Fill(base Table) {
	for v, b := range base {
		a, ok := t[v]
		if !ok {
			t[v] = b
			continue
		}
		if a.AreaKM2 <= 0 {
			a.AreaKM2 = b.AreaKM2
			t[v] = a
		}
	}
}

// LoadTable reads tract attributes from a shapefile. valueField holds the
// code burned into the tract raster and fipsField the tract FIPS. When
// areaField is empty areas are left at zero for Fill to supply.
func LoadTable(shpPath, valueField, fipsField, areaField string) (Table, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tract: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	idx := subbasin.FieldIndex(reader.Fields())
	lookup := func(name string) (int, error) {
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			return 0, eris.Errorf("tract: field %q not found in %s", name, shpPath)
		}
		return i, nil
	}

	valueCol, err := lookup(valueField)
	if err != nil {
		return nil, err
	}
	fipsCol, err := lookup(fipsField)
	if err != nil {
		return nil, err
	}
	areaCol := -1
	if areaField != "" {
		if areaCol, err = lookup(areaField); err != nil {
			return nil, err
		}
	}

	t := make(Table)
	for reader.Next() {
		row, _ := reader.Shape()

		v, err := subbasin.ParseID(subbasin.Attribute(reader, valueCol))
		if err != nil {
			return nil, eris.Wrapf(err, "tract: record %d value", row)
		}
		a := Attributes{FIPS: subbasin.Attribute(reader, fipsCol)}
		if a.FIPS == "" {
			return nil, eris.Errorf("tract: record %d has empty %s", row, fipsField)
		}
		if areaCol >= 0 {
			if s := subbasin.Attribute(reader, areaCol); s != "" {
				a.AreaKM2, err = strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, eris.Wrapf(err, "tract: record %d area", row)
				}
			}
		}

		if prev, dup := t[int32(v)]; dup && prev.FIPS != a.FIPS {
			return nil, eris.Errorf("tract: value %d maps to both %s and %s", v, prev.FIPS, a.FIPS)
		}
		t[int32(v)] = a
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "tract: read %s", shpPath)
	}

	zap.L().Debug("tract: loaded attribute table",
		zap.String("path", shpPath),
		zap.Int("tracts", len(t)),
	)

	return t, nil
}
