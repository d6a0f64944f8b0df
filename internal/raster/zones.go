package raster

import (
	"sort"

	"github.com/rotisserie/eris"
)

// ClassCount is one row of a raster attribute table.
type ClassCount struct {
	Value int32
	Count int
}

// ZoneIndex maps each zone value of a grid to the indices of its cells.
type ZoneIndex struct {
	Header
	cells map[int32][]int
}

// IndexZones walks zones once and groups cell indices by value. Nodata
// cells belong to no zone.
func IndexZones(zones *Grid) *ZoneIndex {
	idx := &ZoneIndex{Header: zones.Header, cells: make(map[int32][]int)}
	for i, v := range zones.Cells {
		if zones.IsNoData(i) {
			continue
		}
		idx.cells[v] = append(idx.cells[v], i)
	}
	return idx
}

// Zones returns the zone values present, ascending.
func (z *ZoneIndex) Zones() []int32 {
	out := make([]int32, 0, len(z.cells))
	for v := range z.cells {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Mask is the footprint of one zone: 1 inside, nodata outside.
type Mask struct {
	Header
	Zone  int32
	Cells []int
}

// Mask returns the footprint of zone id. An absent zone yields an empty mask.
func (z *ZoneIndex) Mask(id int32) *Mask {
	return &Mask{Header: z.Header, Zone: id, Cells: z.cells[id]}
}

// Count is the number of cells in the mask.
func (m *Mask) Count() int { return len(m.Cells) }

// Grid renders the mask as a full-extent grid.
func (m *Mask) Grid() *Grid {
	g := New(m.Header)
	for _, i := range m.Cells {
		g.Cells[i] = 1
	}
	return g
}

// Extract counts the classes of src inside the mask. Nodata source cells
// are skipped. Classes are returned in ascending value order.
func Extract(src *Grid, m *Mask, tol float64) ([]ClassCount, error) {
	if err := src.AlignedWith(m.Header, tol); err != nil {
		return nil, eris.Wrap(err, "raster: extract by mask")
	}

	counts := make(map[int32]int)
	for _, i := range m.Cells {
		if src.IsNoData(i) {
			continue
		}
		counts[src.Cells[i]]++
	}

	return sortedCounts(counts), nil
}

// Clip returns src with every cell outside the mask set to nodata.
func Clip(src *Grid, m *Mask) *Grid {
	g := New(src.Header)
	for _, i := range m.Cells {
		g.Cells[i] = src.Cells[i]
	}
	return g
}

// CountClasses builds the attribute table of a whole grid.
func CountClasses(g *Grid) []ClassCount {
	counts := make(map[int32]int)
	for i, v := range g.Cells {
		if g.IsNoData(i) {
			continue
		}
		counts[v]++
	}
	return sortedCounts(counts)
}

func sortedCounts(counts map[int32]int) []ClassCount {
	out := make([]ClassCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ClassCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
