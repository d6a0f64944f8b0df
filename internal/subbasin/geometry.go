package subbasin

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/raster"
)

// ReadZones returns each subbasin footprint keyed by its ID, in record
// order, ready for rasterizing.
func ReadZones(shpPath, field string) ([]raster.Zone, error) {
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

	var zones []raster.Zone
	var skipped int
	for reader.Next() {
		row, shape := reader.Shape()
		id, err := ParseID(Attribute(reader, col))
		if err != nil {
			return nil, eris.Wrapf(err, "subbasin: record %d", row)
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := PolygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		zones = append(zones, raster.Zone{ID: int32(id), Geom: mp})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "subbasin: read %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Warn("subbasin: skipped non-polygon records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return zones, nil
}

// PolygonToMultiPolygon converts a shapefile polygon into one go-geom
// polygon per ring part. Holes stay as separate parts; rasterizing applies
// the even-odd rule across them.
func PolygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("subbasin: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("subbasin: skipping malformed part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
