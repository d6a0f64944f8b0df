package raster

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const zonesASC = `ncols 4
nrows 3
xllcorner 100
yllcorner 200
cellsize 30
NODATA_value -9999
1 1 2 2
1 1 2 -9999
3 3 3 -9999
`

const landASC = `ncols 4
nrows 3
xllcorner 100
yllcorner 200
cellsize 30
NODATA_value -9999
11 41 41 41
11 -9999 21 21
81.0 81 82 82
`

func mustASCII(t *testing.T, s string) *Grid {
	t.Helper()
	g, err := ReadASCII(strings.NewReader(s))
	require.NoError(t, err)
	return g
}

func TestReadASCII_Header(t *testing.T) {
	g := mustASCII(t, zonesASC)

	assert.Equal(t, 4, g.Cols)
	assert.Equal(t, 3, g.Rows)
	assert.InDelta(t, 100.0, g.XLL, 1e-9)
	assert.InDelta(t, 200.0, g.YLL, 1e-9)
	assert.InDelta(t, 30.0, g.CellSize, 1e-9)
	assert.Equal(t, int32(-9999), g.NoData)
	assert.Equal(t, []int32{1, 1, 2, 2, 1, 1, 2, -9999, 3, 3, 3, -9999}, g.Cells)
}

func TestReadASCII_CenterOrigin(t *testing.T) {
	g := mustASCII(t, "ncols 1\nnrows 1\nxllcenter 15\nyllcenter 15\ncellsize 30\n5\n")
	assert.InDelta(t, 0.0, g.XLL, 1e-9)
	assert.InDelta(t, 0.0, g.YLL, 1e-9)
	assert.Equal(t, DefaultNoData, g.NoData)
}

func TestReadASCII_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"too few cells", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n", "has 3 cells"},
		{"too many cells", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n", "more than 1 cells"},
		{"bad dims", "ncols 0\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n", "invalid dimensions"},
		{"fractional cell", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1.5\n", "non-categorical"},
		{"unknown key", "ncols 1\nbands 2\n", "unknown ascii header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadASCII(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteASCII_RoundTrip(t *testing.T) {
	g := mustASCII(t, zonesASC)

	var buf bytes.Buffer
	require.NoError(t, WriteASCII(&buf, g))

	back, err := ReadASCII(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Header, back.Header)
	assert.Equal(t, g.Cells, back.Cells)
}

func TestOpen_ASCIIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs_30m.asc")
	require.NoError(t, WriteASCIIFile(path, mustASCII(t, zonesASC)))

	g, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 12, g.Len())
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open("landcover.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func writeBinary(t *testing.T, dir, name, hdr string, order binary.ByteOrder, data any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	base := strings.TrimSuffix(path, filepath.Ext(path))
	require.NoError(t, os.WriteFile(base+".hdr", []byte(hdr), 0o644))

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, order, data))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestOpen_FLT(t *testing.T) {
	hdr := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 30\nNODATA_value -3.4028235e+38\nbyteorder LSBFIRST\n"
	path := writeBinary(t, t.TempDir(), "lu.flt", hdr, binary.LittleEndian,
		[]float32{11, 41, -math.MaxFloat32, 82})

	g, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{11, 41, DefaultNoData, 82}, g.Cells)
	assert.Equal(t, DefaultNoData, g.NoData)
}

func TestOpen_BIL16BigEndian(t *testing.T) {
	hdr := "BYTEORDER M\nNROWS 1\nNCOLS 3\nNBITS 16\nPIXELTYPE SIGNEDINT\nULXMAP 15\nULYMAP 45\nXDIM 30\nNODATA -1\n"
	path := writeBinary(t, t.TempDir(), "tracts.bil", hdr, binary.BigEndian, []int16{7, -1, 300})

	g, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{7, -1, 300}, g.Cells)
	assert.Equal(t, int32(-1), g.NoData)
	assert.InDelta(t, 0.0, g.XLL, 1e-9)
	assert.InDelta(t, 30.0, g.YLL, 1e-9)
}

func TestOpen_BinaryShortFile(t *testing.T) {
	hdr := "ncols 3\nnrows 3\nxllcorner 0\nyllcorner 0\ncellsize 1\nnbits 8\npixeltype unsignedint\n"
	path := writeBinary(t, t.TempDir(), "short.bil", hdr, binary.LittleEndian, []uint8{1, 2})

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read 9 binary cells")
}

func TestReadBinaryHeader_Origin(t *testing.T) {
	asc := mustASCII(t, "ncols 2\nnrows 2\nxllcenter 15\nyllcenter 15\ncellsize 30\n1 2\n3 4\n")

	tests := []struct {
		name string
		hdr  string
	}{
		{"corner", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 30\n"},
		{"center", "ncols 2\nnrows 2\nxllcenter 15\nyllcenter 15\ncellsize 30\n"},
		{"upper-left map", "NCOLS 2\nNROWS 2\nULXMAP 15\nULYMAP 45\nXDIM 30\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, err := readBinaryHeader(strings.NewReader(tt.hdr), true)
			require.NoError(t, err)
			assert.InDelta(t, 0.0, h.XLL, 1e-9)
			assert.InDelta(t, 0.0, h.YLL, 1e-9)
			assert.NoError(t, h.AlignedWith(asc.Header, 1e-6))
		})
	}
}

func TestReadBinaryHeader_Defaults(t *testing.T) {
	const hdr = "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n"

	tests := []struct {
		name    string
		flt     bool
		nbits   int
		float   bool
		signed  bool
		indexed bool
	}{
		{"bil", false, 8, false, false, false},
		{"flt", true, 32, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, l, err := readBinaryHeader(strings.NewReader(hdr), tt.flt)
			require.NoError(t, err)
			assert.Equal(t, tt.nbits, l.nbits)
			assert.Equal(t, tt.float, l.float)
			assert.Equal(t, tt.signed, l.signed)
			assert.Equal(t, tt.indexed, l.indexed())
		})
	}
}

func TestBinaryLayout_Indexed(t *testing.T) {
	tests := []struct {
		name string
		l    binaryLayout
		want bool
	}{
		{"int32", binaryLayout{order: binary.LittleEndian, nbits: 32, signed: true}, true},
		{"int16", binaryLayout{order: binary.LittleEndian, nbits: 16, signed: true}, true},
		{"byte", binaryLayout{order: binary.LittleEndian, nbits: 8, signed: true}, false},
		{"big endian", binaryLayout{order: binary.BigEndian, nbits: 16, signed: true}, false},
		{"unsigned", binaryLayout{order: binary.LittleEndian, nbits: 32}, false},
		{"float", binaryLayout{order: binary.LittleEndian, nbits: 32, float: true, signed: true}, false},
		{"skip bytes", binaryLayout{order: binary.LittleEndian, nbits: 32, signed: true, skipBytes: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.l.indexed())
		})
	}
}

func TestOpen_BILDefaultByteCells(t *testing.T) {
	hdr := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 30\n"
	path := writeBinary(t, t.TempDir(), "lu.bil", hdr, binary.LittleEndian, []uint8{3, 200, 0, 7})

	g, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 200, 0, 7}, g.Cells)
}

func TestOpen_BIL32Indexed(t *testing.T) {
	hdr := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 30\nnbits 32\npixeltype signedint\nnodata -9999\n"
	path := writeBinary(t, t.TempDir(), "tracts.bil", hdr, binary.LittleEndian, []int32{5, -9999, 7, 5})

	g, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, -9999, 7, 5}, g.Cells)
	assert.Equal(t, []ClassCount{{Value: 5, Count: 2}, {Value: 7, Count: 1}}, CountClasses(g))
}

func TestOpen_BIL32IndexedShortFile(t *testing.T) {
	hdr := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 30\nnbits 32\npixeltype signedint\n"
	path := writeBinary(t, t.TempDir(), "tracts.bil", hdr, binary.LittleEndian, []int32{5, 6})

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read 4 binary cells")
}

func TestOpen_BinaryOverflow(t *testing.T) {
	tests := []struct {
		name string
		file string
		hdr  string
		data any
		want string
	}{
		{
			name: "float beyond int32",
			file: "lu.flt",
			hdr:  "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n",
			data: []float32{11, 3e9},
			want: "non-categorical cell value",
		},
		{
			name: "unsigned 32-bit beyond int32",
			file: "lu.bil",
			hdr:  "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nnbits 32\npixeltype unsignedint\n",
			data: []uint32{11, 4000000000},
			want: "overflows int32",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeBinary(t, t.TempDir(), tt.file, tt.hdr, binary.LittleEndian, tt.data)
			_, err := Open(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHeader_AlignedWith(t *testing.T) {
	base := Header{Cols: 4, Rows: 3, XLL: 100, YLL: 200, CellSize: 30}

	assert.NoError(t, base.AlignedWith(base, 1e-6))

	shifted := base
	shifted.XLL += 15
	assert.ErrorContains(t, base.AlignedWith(shifted, 1e-6), "origin mismatch")

	coarse := base
	coarse.CellSize = 60
	assert.ErrorContains(t, base.AlignedWith(coarse, 1e-6), "cell size mismatch")

	wide := base
	wide.Cols = 5
	assert.ErrorContains(t, base.AlignedWith(wide, 1e-6), "shape mismatch")
}

func TestHeader_CellGeometry(t *testing.T) {
	h := Header{Cols: 4, Rows: 3, XLL: 100, YLL: 200, CellSize: 30}

	x, y := h.CellCenter(0)
	assert.InDelta(t, 115.0, x, 1e-9)
	assert.InDelta(t, 275.0, y, 1e-9)

	x, y = h.CellCenter(11)
	assert.InDelta(t, 205.0, x, 1e-9)
	assert.InDelta(t, 215.0, y, 1e-9)
}

func TestIndexZones_Mask(t *testing.T) {
	zones := IndexZones(mustASCII(t, zonesASC))

	assert.Equal(t, []int32{1, 2, 3}, zones.Zones())

	m := zones.Mask(1)
	assert.Equal(t, []int{0, 1, 4, 5}, m.Cells)
	assert.Equal(t, 4, m.Count())

	rendered := m.Grid()
	assert.Equal(t, int32(1), rendered.Cells[0])
	assert.True(t, rendered.IsNoData(2))

	assert.Equal(t, 0, zones.Mask(99).Count())
}

func TestExtract(t *testing.T) {
	zones := IndexZones(mustASCII(t, zonesASC))
	land := mustASCII(t, landASC)

	// Zone 1 covers 11, 41, 11 and one nodata cell.
	got, err := Extract(land, zones.Mask(1), 1e-6)
	require.NoError(t, err)
	assert.Equal(t, []ClassCount{{Value: 11, Count: 2}, {Value: 41, Count: 1}}, got)

	got, err = Extract(land, zones.Mask(3), 1e-6)
	require.NoError(t, err)
	assert.Equal(t, []ClassCount{{Value: 81, Count: 2}, {Value: 82, Count: 1}}, got)
}

func TestExtract_Misaligned(t *testing.T) {
	zones := IndexZones(mustASCII(t, zonesASC))
	land := mustASCII(t, strings.Replace(landASC, "xllcorner 100", "xllcorner 130", 1))

	_, err := Extract(land, zones.Mask(1), 1e-6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract by mask")
}

func TestClip(t *testing.T) {
	zones := IndexZones(mustASCII(t, zonesASC))
	land := mustASCII(t, landASC)

	clipped := Clip(land, zones.Mask(2))
	assert.Equal(t, []int32{
		-9999, -9999, 41, 41,
		-9999, -9999, 21, -9999,
		-9999, -9999, -9999, -9999,
	}, clipped.Cells)
}

func TestCountClasses(t *testing.T) {
	got := CountClasses(mustASCII(t, landASC))
	assert.Equal(t, []ClassCount{
		{Value: 11, Count: 2},
		{Value: 21, Count: 2},
		{Value: 41, Count: 3},
		{Value: 81, Count: 2},
		{Value: 82, Count: 2},
	}, got)
}

func squareZone(id int32, x0, y0, x1, y1 float64) Zone {
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	_ = poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{x0, y0, x0, y1, x1, y1, x1, y0, x0, y0}))
	_ = mp.Push(poly)
	return Zone{ID: id, Geom: mp}
}

func TestRasterize(t *testing.T) {
	h := Header{Cols: 4, Rows: 3, XLL: 0, YLL: 0, CellSize: 10, NoData: -1}

	g := Rasterize([]Zone{
		squareZone(1, 0, 0, 20, 30),
		squareZone(2, 20, 10, 40, 30),
	}, h)

	assert.Equal(t, []int32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		1, 1, -1, -1,
	}, g.Cells)
}

func TestRasterize_FirstZoneWinsAndHoles(t *testing.T) {
	h := Header{Cols: 3, Rows: 3, XLL: 0, YLL: 0, CellSize: 10, NoData: -9999}

	// Zone 5 is a 30x30 square with a hole over the centre cell.
	outer := squareZone(5, 0, 0, 30, 30)
	hole := geom.NewPolygon(geom.XY)
	_ = hole.Push(geom.NewLinearRingFlat(geom.XY, []float64{10, 10, 20, 10, 20, 20, 10, 20, 10, 10}))
	_ = outer.Geom.Push(hole)

	g := Rasterize([]Zone{outer, squareZone(6, 0, 0, 30, 30)}, h)

	assert.Equal(t, []int32{
		5, 5, 5,
		5, 6, 5,
		5, 5, 5,
	}, g.Cells)
}

func TestRasterize_OutsideGrid(t *testing.T) {
	h := Header{Cols: 2, Rows: 2, XLL: 0, YLL: 0, CellSize: 10, NoData: -9999}

	g := Rasterize([]Zone{squareZone(1, 500, 500, 600, 600), {ID: 2}}, h)
	for _, v := range g.Cells {
		assert.Equal(t, int32(-9999), v)
	}
}
