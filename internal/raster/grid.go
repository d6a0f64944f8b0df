// Package raster reads, writes and masks categorical grids that share one
// cell lattice.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// DefaultNoData is used when a grid header omits a nodata value.
const DefaultNoData int32 = -9999

// Header describes the lattice of a grid. Origin is the lower-left corner.
type Header struct {
	Cols     int
	Rows     int
	XLL      float64
	YLL      float64
	CellSize float64
	NoData   int32
}

// Grid is a categorical raster stored row-major from the northern row.
type Grid struct {
	Header
	Cells []int32
}

// New allocates a grid filled with nodata.
func New(h Header) *Grid {
	cells := make([]int32, h.Cols*h.Rows)
	for i := range cells {
		cells[i] = h.NoData
	}
	return &Grid{Header: h, Cells: cells}
}

// Len returns the number of cells.
func (h Header) Len() int { return h.Cols * h.Rows }

// CellCenter returns the map coordinate of the centre of cell i.
func (h Header) CellCenter(i int) (x, y float64) {
	r, c := i/h.Cols, i%h.Cols
	x = h.XLL + (float64(c)+0.5)*h.CellSize
	y = h.YLL + (float64(h.Rows-r)-0.5)*h.CellSize
	return x, y
}

// Validate checks the header describes a usable lattice.
func (h Header) Validate() error {
	if h.Cols <= 0 || h.Rows <= 0 {
		return eris.Errorf("raster: invalid dimensions %dx%d", h.Cols, h.Rows)
	}
	if h.CellSize <= 0 || math.IsNaN(h.CellSize) {
		return eris.Errorf("raster: invalid cell size %v", h.CellSize)
	}
	return nil
}

// AlignedWith reports an error unless both headers share shape, cell size
// and origin within tol map units.
func (h Header) AlignedWith(o Header, tol float64) error {
	if h.Cols != o.Cols || h.Rows != o.Rows {
		return eris.Errorf("raster: shape mismatch %dx%d vs %dx%d", h.Cols, h.Rows, o.Cols, o.Rows)
	}
	if math.Abs(h.CellSize-o.CellSize) > tol {
		return eris.Errorf("raster: cell size mismatch %v vs %v", h.CellSize, o.CellSize)
	}
	if math.Abs(h.XLL-o.XLL) > tol || math.Abs(h.YLL-o.YLL) > tol {
		return eris.Errorf("raster: origin mismatch (%v, %v) vs (%v, %v)", h.XLL, h.YLL, o.XLL, o.YLL)
	}
	return nil
}

// IsNoData reports whether cell i holds the nodata value.
func (g *Grid) IsNoData(i int) bool { return g.Cells[i] == g.NoData }
