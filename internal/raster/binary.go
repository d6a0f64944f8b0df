package raster

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// binaryLayout carries the .hdr fields that control cell decoding.
type binaryLayout struct {
	order     binary.ByteOrder
	nbits     int
	float     bool
	signed    bool
	skipBytes int64

	// floatNoData holds a nodata marker that is not a valid int32, such as
	// -3.4028235e+38 in .flt exports.
	floatNoData    float32
	hasFloatNoData bool
}

// readBinaryHeader parses an ESRI .hdr sidecar. floatDefault selects the
// .flt convention (32-bit float cells); otherwise BIL defaults apply:
// 8-bit unsigned integers.
func readBinaryHeader(r io.Reader, floatDefault bool) (Header, binaryLayout, error) {
	h := Header{NoData: DefaultNoData}
	l := binaryLayout{order: binary.LittleEndian, nbits: 8, float: floatDefault}
	if floatDefault {
		l.nbits = 32
	}
	var ulx, uly float64
	var haveUL, centerX, centerY bool

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		key, val := strings.ToLower(fields[0]), fields[1]

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
		case "ulxmap":
			ulx, err = strconv.ParseFloat(val, 64)
			haveUL = true
		case "ulymap":
			uly, err = strconv.ParseFloat(val, 64)
			haveUL = true
		case "cellsize", "xdim":
			h.CellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value", "nodata":
			var perr error
			h.NoData, perr = parseCell(val)
			if perr != nil {
				f, ferr := strconv.ParseFloat(val, 32)
				if ferr != nil {
					err = ferr
					break
				}
				h.NoData = DefaultNoData
				l.floatNoData, l.hasFloatNoData = float32(f), true
			}
		case "byteorder":
			switch strings.ToUpper(val) {
			case "MSBFIRST", "M":
				l.order = binary.BigEndian
			case "LSBFIRST", "I":
				l.order = binary.LittleEndian
			default:
				err = eris.Errorf("unknown byte order %q", val)
			}
		case "nbits":
			l.nbits, err = strconv.Atoi(val)
		case "pixeltype":
			switch strings.ToUpper(val) {
			case "FLOAT":
				l.float = true
			case "UNSIGNEDINT":
				l.float, l.signed = false, false
			case "SIGNEDINT":
				l.float, l.signed = false, true
			}
		case "skipbytes":
			l.skipBytes, err = strconv.ParseInt(val, 10, 64)
		}
		if err != nil {
			return h, l, eris.Wrapf(err, "raster: hdr field %s", key)
		}
	}
	if err := sc.Err(); err != nil {
		return h, l, eris.Wrap(err, "raster: scan hdr")
	}

	if centerX {
		h.XLL -= h.CellSize / 2
	}
	if centerY {
		h.YLL -= h.CellSize / 2
	}
	// BIL headers locate the centre of the upper-left cell.
	if haveUL {
		h.XLL = ulx - h.CellSize/2
		h.YLL = uly + h.CellSize/2 - float64(h.Rows)*h.CellSize
	}
	if l.float && l.nbits != 32 {
		return h, l, eris.Errorf("raster: unsupported float width %d", l.nbits)
	}
	switch l.nbits {
	case 8, 16, 32:
	default:
		return h, l, eris.Errorf("raster: unsupported cell width %d", l.nbits)
	}

	return h, l, h.Validate()
}

// indexed reports whether goHydro's index grid can decode the cells:
// little-endian signed 16- or 32-bit integers with no leading bytes.
func (l binaryLayout) indexed() bool {
	return !l.float && l.signed && l.order == binary.LittleEndian &&
		l.skipBytes == 0 && (l.nbits == 16 || l.nbits == 32)
}

// readBinaryCells decodes rows*cols single-band cells from r.
func readBinaryCells(r io.Reader, h Header, l binaryLayout) ([]int32, error) {
	if l.skipBytes > 0 {
		if _, err := io.CopyN(io.Discard, r, l.skipBytes); err != nil {
			return nil, eris.Wrap(err, "raster: skip binary header bytes")
		}
	}

	width := l.nbits / 8
	buf := make([]byte, h.Len()*width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, eris.Wrapf(err, "raster: read %d binary cells", h.Len())
	}

	cells := make([]int32, h.Len())
	for i := range cells {
		b := buf[i*width : (i+1)*width]
		switch {
		case l.float:
			f := math.Float32frombits(l.order.Uint32(b))
			if l.hasFloatNoData && f == l.floatNoData {
				cells[i] = h.NoData
				continue
			}
			v := float64(f)
			if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
				return nil, eris.Errorf("raster: non-categorical cell value %v at %d", f, i)
			}
			cells[i] = int32(v)
		case width == 1:
			if l.signed {
				cells[i] = int32(int8(b[0]))
			} else {
				cells[i] = int32(b[0])
			}
		case width == 2:
			u := l.order.Uint16(b)
			if l.signed {
				cells[i] = int32(int16(u))
			} else {
				cells[i] = int32(u)
			}
		case l.signed:
			cells[i] = int32(l.order.Uint32(b))
		default:
			u := l.order.Uint32(b)
			if u > math.MaxInt32 {
				return nil, eris.Errorf("raster: cell value %d at %d overflows int32", u, i)
			}
			cells[i] = int32(u)
		}
	}

	return cells, nil
}

// ReadBinary reads an ESRI .flt or .bil grid with its .hdr sidecar.
func ReadBinary(path string) (*Grid, error) {
	ext := strings.ToLower(filepath.Ext(path))
	hdrPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".hdr"

	hf, err := os.Open(hdrPath)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", hdrPath)
	}
	h, l, err := readBinaryHeader(hf, ext == ".flt")
	_ = hf.Close()
	if err != nil {
		return nil, err
	}
	if l.indexed() {
		return readIndx(path, h, l)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = f.Close() }()

	cells, err := readBinaryCells(bufio.NewReader(f), h, l)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: decode %s", path)
	}

	return &Grid{Header: h, Cells: cells}, nil
}
