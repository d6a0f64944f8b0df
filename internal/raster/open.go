package raster

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Open reads a grid, choosing the decoder from the file extension:
// .asc/.txt are ESRI ASCII grids, .flt/.bil are ESRI binary grids.
func Open(path string) (*Grid, error) {
	var (
		g   *Grid
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc", ".txt":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "raster: open %s", path)
		}
		g, err = ReadASCII(f)
		_ = f.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "raster: read %s", path)
		}
	case ".flt", ".bil":
		g, err = ReadBinary(path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("raster: unsupported format %q (want .asc, .txt, .flt or .bil)", filepath.Ext(path))
	}

	zap.L().Debug("raster: loaded grid",
		zap.String("path", path),
		zap.Int("cols", g.Cols),
		zap.Int("rows", g.Rows),
		zap.Float64("cell_size", g.CellSize),
	)

	return g, nil
}
