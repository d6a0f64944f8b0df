// Package zonal turns per-subbasin class counts into area-weighted share
// tables.
package zonal

import (
	"github.com/rotisserie/eris"

	"github.com/yadkin-swat/subscale/internal/raster"
	"github.com/yadkin-swat/subscale/internal/tract"
)

// LandCoverRow is the share of one land-cover class within a subbasin.
type LandCoverRow struct {
	Sub      int
	Value    int32
	AreaKM2  float64
	AreaPerc float64
}

// TractRow relates one census tract to one subbasin. TractPerc is the
// percentage of the tract's total area inside the subbasin; SubPerc is the
// percentage of the subbasin made up by the tract.
type TractRow struct {
	Sub        int
	FIPS       string
	SubAreaKM2 float64
	TractPerc  float64
	SubPerc    float64
}

// LandCoverShares computes class percentages for one subbasin. The
// denominator is the number of classified cells, so nodata inside the
// subbasin does not dilute the shares.
func LandCoverShares(sub int, classes []raster.ClassCount, cellArea float64) []LandCoverRow {
	var total int
	for _, c := range classes {
		total += c.Count
	}
	if total == 0 {
		return nil
	}

	totalArea := float64(total) * cellArea
	rows := make([]LandCoverRow, 0, len(classes))
	for _, c := range classes {
		area := float64(c.Count) * cellArea
		rows = append(rows, LandCoverRow{
			Sub:      sub,
			Value:    c.Value,
			AreaKM2:  area,
			AreaPerc: area / totalArea * 100,
		})
	}
	return rows
}

// TractShares scales the tracts found inside one subbasin. subCells is the
// mask cell count; tracts are resolved through table.
func TractShares(sub, subCells int, classes []raster.ClassCount, table tract.Table, cellArea float64) ([]TractRow, error) {
	if subCells == 0 {
		return nil, nil
	}

	subArea := float64(subCells) * cellArea
	rows := make([]TractRow, 0, len(classes))
	for _, c := range classes {
		attr, ok := table[c.Value]
		if !ok {
			return nil, eris.Errorf("zonal: tract value %d in subbasin %d has no attributes", c.Value, sub)
		}
		if attr.AreaKM2 <= 0 {
			return nil, eris.Errorf("zonal: tract %s has no total area", attr.FIPS)
		}

		area := float64(c.Count) * cellArea
		rows = append(rows, TractRow{
			Sub:        sub,
			FIPS:       attr.FIPS,
			SubAreaKM2: area,
			TractPerc:  area / attr.AreaKM2 * 100,
			SubPerc:    area / subArea * 100,
		})
	}
	return rows, nil
}

// WeightedRow is the area-weighted vulnerability score of one subbasin.
// Coverage is the percentage of the subbasin whose tracts carry a score.
type WeightedRow struct {
	Sub      int
	Index    float64
	Coverage float64
}

// WeightedIndex averages tract scores over each subbasin, weighting by
// SubPerc. Tracts without a score are left out of both the sum and the
// weights and returned as missing FIPS codes. Subbasins keep the order in
// which they first appear in rows.
func WeightedIndex(rows []TractRow, scores map[string]float64) ([]WeightedRow, []string) {
	var out []WeightedRow
	pos := make(map[int]int)
	sums := make(map[int]float64)
	var missing []string
	seenMissing := make(map[string]bool)

	for _, r := range rows {
		i, ok := pos[r.Sub]
		if !ok {
			i = len(out)
			pos[r.Sub] = i
			out = append(out, WeightedRow{Sub: r.Sub})
		}

		s, ok := scores[r.FIPS]
		if !ok {
			if !seenMissing[r.FIPS] {
				seenMissing[r.FIPS] = true
				missing = append(missing, r.FIPS)
			}
			continue
		}
		out[i].Coverage += r.SubPerc
		sums[r.Sub] += s * r.SubPerc
	}

	for i := range out {
		if out[i].Coverage > 0 {
			out[i].Index = sums[out[i].Sub] / out[i].Coverage
		}
	}
	return out, missing
}
