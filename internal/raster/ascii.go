package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadASCII parses an ESRI ASCII grid. Centre-registered origins are
// shifted to the lower-left corner.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	h := Header{NoData: DefaultNoData}
	var centerX, centerY bool
	var pending string

	// Header keywords are optional after cellsize; the first numeric token
	// ends the header.
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("raster: ascii header %q missing value", key)
		}
		val := sc.Text()

		var err error
		switch key {
		case "ncols":
			h.Cols, err = strconv.Atoi(val)
		case "nrows":
			h.Rows, err = strconv.Atoi(val)
		case "xllcorner":
			h.XLL, err = strconv.ParseFloat(val, 64)
		case "xllcenter":
			h.XLL, err = strconv.ParseFloat(val, 64)
			centerX = true
		case "yllcorner":
			h.YLL, err = strconv.ParseFloat(val, 64)
		case "yllcenter":
			h.YLL, err = strconv.ParseFloat(val, 64)
			centerY = true
		case "cellsize":
			h.CellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			h.NoData, err = parseCell(val)
		default:
			return nil, eris.Errorf("raster: unknown ascii header %q", key)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "raster: ascii header %s", key)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: scan ascii header")
	}

	if centerX {
		h.XLL -= h.CellSize / 2
	}
	if centerY {
		h.YLL -= h.CellSize / 2
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{Header: h, Cells: make([]int32, 0, h.Len())}
	if pending != "" {
		v, err := parseCell(pending)
		if err != nil {
			return nil, eris.Wrap(err, "raster: ascii cell 0")
		}
		g.Cells = append(g.Cells, v)
	}
	for sc.Scan() {
		if len(g.Cells) == h.Len() {
			return nil, eris.Errorf("raster: ascii grid has more than %d cells", h.Len())
		}
		v, err := parseCell(sc.Text())
		if err != nil {
			return nil, eris.Wrapf(err, "raster: ascii cell %d", len(g.Cells))
		}
		g.Cells = append(g.Cells, v)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: scan ascii cells")
	}
	if len(g.Cells) != h.Len() {
		return nil, eris.Errorf("raster: ascii grid has %d cells, header declares %d", len(g.Cells), h.Len())
	}

	return g, nil
}

// parseCell accepts integer or integral float tokens ("12", "12.0").
func parseCell(s string) (int32, error) {
	if v, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, eris.Errorf("non-categorical cell value %s", s)
	}
	return int32(f), nil
}

// WriteASCII serializes g as an ESRI ASCII grid.
func WriteASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatCoord(g.XLL), formatCoord(g.YLL))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %d\n", formatCoord(g.CellSize), g.NoData)

	for r := 0; r < g.Rows; r++ {
		row := g.Cells[r*g.Cols : (r+1)*g.Cols]
		for c, v := range row {
			if c > 0 {
				_ = bw.WriteByte(' ')
			}
			_, _ = bw.WriteString(strconv.FormatInt(int64(v), 10))
		}
		_ = bw.WriteByte('\n')
	}

	return eris.Wrap(bw.Flush(), "raster: write ascii")
}

// WriteASCIIFile writes g to path, replacing any existing file.
func WriteASCIIFile(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	if err := WriteASCII(f, g); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "raster: close %s", path)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
