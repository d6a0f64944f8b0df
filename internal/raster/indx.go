package raster

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/maseology/goHydro/grid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// readIndx loads an integer .bil through goHydro's index grid. Cells are
// keyed by cell ID, row-major from the north-west corner, which is the
// layout of Grid.Cells.
func readIndx(path string, h Header, l binaryLayout) (*Grid, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: stat %s", path)
	}
	if want := int64(h.Len()) * int64(l.nbits/8); fi.Size() < want {
		return nil, eris.Errorf("raster: decode %s: read %d binary cells: %d bytes, want %d",
			path, h.Len(), fi.Size(), want)
	}

	gd, err := definition(h)
	if err != nil {
		return nil, err
	}

	var x grid.Indx
	x.LoadGDef(gd)
	if l.nbits == 16 {
		x.NewShort(path, false)
	} else {
		x.New(path, false)
	}

	g := New(h)
	for cid, v := range x.Values() {
		if cid < 0 || cid >= h.Len() {
			return nil, eris.Errorf("raster: decode %s: cell id %d outside %dx%d grid", path, cid, h.Cols, h.Rows)
		}
		if v > math.MaxInt32 || v < math.MinInt32 {
			return nil, eris.Errorf("raster: decode %s: cell value %d at %d overflows int32", path, v, cid)
		}
		g.Cells[cid] = int32(v)
	}

	zap.L().Debug("raster: loaded index grid",
		zap.String("path", path),
		zap.Int("bits", l.nbits),
		zap.Int("cells", gd.Ncells()),
	)
	return g, nil
}

// definition expresses h as a goHydro grid definition. goHydro only reads
// definitions from .gdef files, so h is written to a temporary one: origin
// easting and northing of the north-west corner, rotation, rows, columns and
// a "U"-prefixed uniform cell width.
func definition(h Header) (*grid.Definition, error) {
	dir, err := os.MkdirTemp("", "subscale-gdef-")
	if err != nil {
		return nil, eris.Wrap(err, "raster: create gdef dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	fp := filepath.Join(dir, "grid.gdef")
	body := fmt.Sprintf("%s\n%s\n0\n%d\n%d\nU%s\n",
		formatCoord(h.XLL),
		formatCoord(h.YLL+float64(h.Rows)*h.CellSize),
		h.Rows, h.Cols,
		formatCoord(h.CellSize),
	)
	if err := os.WriteFile(fp, []byte(body), 0o644); err != nil {
		return nil, eris.Wrap(err, "raster: write gdef")
	}

	gd, err := grid.ReadGDEF(fp, false)
	if err != nil {
		return nil, eris.Wrap(err, "raster: read gdef")
	}
	if gd.Ncells() != h.Len() {
		return nil, eris.Errorf("raster: grid definition has %d cells, header declares %d", gd.Ncells(), h.Len())
	}
	return gd, nil
}
