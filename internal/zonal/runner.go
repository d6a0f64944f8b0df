package zonal

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yadkin-swat/subscale/internal/raster"
	"github.com/yadkin-swat/subscale/internal/scratch"
	"github.com/yadkin-swat/subscale/internal/tract"
)

// Extraction holds the class counts of a source raster inside one subbasin.
type Extraction struct {
	Sub       int
	MaskCells int
	Classes   []raster.ClassCount
}

// Runner masks a source raster by each subbasin in turn.
type Runner struct {
	Zones       *raster.ZoneIndex
	Scratch     *scratch.Dir
	Concurrency int
	Tolerance   float64
}

// Extract visits subbasins in ids order and returns one Extraction per ID,
// in the same order. clipPrefix names the scratch clip rasters
// (<clipPrefix><ID>). The first failure cancels the remaining subbasins.
func (r *Runner) Extract(ctx context.Context, ids []int, src *raster.Grid, clipPrefix string) ([]Extraction, error) {
	if err := src.AlignedWith(r.Zones.Header, r.Tolerance); err != nil {
		return nil, eris.Wrap(err, "zonal: source raster does not match subbasin grid")
	}

	log := zap.L().With(zap.String("component", "zonal.runner"), zap.String("source", clipPrefix))

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}

	out := make([]Extraction, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, id := range ids {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "zonal: cancelled")
			}

			ext, err := r.extractOne(id, src, clipPrefix)
			if err != nil {
				return eris.Wrapf(err, "zonal: subbasin %d", id)
			}
			out[i] = ext

			if ext.MaskCells == 0 {
				log.Warn("subbasin has no cells on the grid", zap.Int("sub", id))
			} else {
				log.Debug("subbasin extracted",
					zap.Int("sub", id),
					zap.Int("mask_cells", ext.MaskCells),
					zap.Int("classes", len(ext.Classes)),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) extractOne(id int, src *raster.Grid, clipPrefix string) (Extraction, error) {
	mask := r.Zones.Mask(int32(id))

	maskPath, err := r.Scratch.WriteGrid(fmt.Sprintf("rastercalc%d", id), mask.Grid())
	if err != nil {
		return Extraction{}, err
	}
	clipPath, err := r.Scratch.WriteGrid(fmt.Sprintf("%s%d", clipPrefix, id), raster.Clip(src, mask))
	if err != nil {
		return Extraction{}, err
	}

	classes, err := raster.Extract(src, mask, r.Tolerance)
	if err != nil {
		return Extraction{}, err
	}

	if err := r.Scratch.Release(maskPath, clipPath); err != nil {
		return Extraction{}, err
	}

	return Extraction{Sub: id, MaskCells: mask.Count(), Classes: classes}, nil
}

// LandCover converts extractions into land-cover share rows.
func LandCover(exts []Extraction, cellArea float64) []LandCoverRow {
	var rows []LandCoverRow
	for _, e := range exts {
		rows = append(rows, LandCoverShares(e.Sub, e.Classes, cellArea)...)
	}
	return rows
}

// Tracts converts extractions into tract scaling rows.
func Tracts(exts []Extraction, table tract.Table, cellArea float64) ([]TractRow, error) {
	var rows []TractRow
	for _, e := range exts {
		r, err := TractShares(e.Sub, e.MaskCells, e.Classes, table, cellArea)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}
	return rows, nil
}
