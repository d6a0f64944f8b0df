package raster

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Zone is a polygon footprint tagged with the value burned into the grid.
type Zone struct {
	ID   int32
	Geom *geom.MultiPolygon
}

// Rasterize burns zones onto a grid with the lattice of template. A cell
// takes the ID of the first zone containing its centre under the even-odd
// rule over all rings, so holes stay outside.
func Rasterize(zones []Zone, template Header) *Grid {
	g := New(template)

	for _, z := range zones {
		if z.Geom == nil || z.Geom.Empty() {
			continue
		}
		rings := zoneRings(z.Geom)
		b := z.Geom.Bounds()

		c0, c1, r0, r1 := template.window(b.Min(0), b.Min(1), b.Max(0), b.Max(1))
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				i := r*template.Cols + c
				if g.Cells[i] != template.NoData {
					continue
				}
				x, y := template.CellCenter(i)
				if insideEvenOdd(rings, geom.Coord{x, y}) {
					g.Cells[i] = z.ID
				}
			}
		}
	}

	return g
}

// window clamps a bounding box to inclusive column and row ranges.
func (h Header) window(minX, minY, maxX, maxY float64) (c0, c1, r0, r1 int) {
	c0 = clamp(int(math.Floor((minX-h.XLL)/h.CellSize)), 0, h.Cols-1)
	c1 = clamp(int(math.Floor((maxX-h.XLL)/h.CellSize)), 0, h.Cols-1)
	r0 = clamp(h.Rows-1-int(math.Floor((maxY-h.YLL)/h.CellSize)), 0, h.Rows-1)
	r1 = clamp(h.Rows-1-int(math.Floor((minY-h.YLL)/h.CellSize)), 0, h.Rows-1)
	return c0, c1, r0, r1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func zoneRings(mp *geom.MultiPolygon) [][]float64 {
	var rings [][]float64
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			rings = append(rings, p.LinearRing(j).FlatCoords())
		}
	}
	return rings
}

func insideEvenOdd(rings [][]float64, p geom.Coord) bool {
	n := 0
	for _, ring := range rings {
		if xy.IsPointInRing(geom.XY, p, ring) {
			n++
		}
	}
	return n%2 == 1
}
