package scratch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadkin-swat/subscale/internal/raster"
)

func tinyGrid() *raster.Grid {
	g := raster.New(raster.Header{Cols: 2, Rows: 1, CellSize: 30, NoData: -9999})
	g.Cells[0] = 1
	return g
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOff, "off": ModeOff, "temp": ModeTemp, "keep": ModeKeep} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("forever")
	assert.ErrorContains(t, err, "unknown mode")
}

func TestNew_OffIsNil(t *testing.T) {
	d, err := New(t.TempDir(), ModeOff)
	require.NoError(t, err)
	assert.Nil(t, d)

	// A nil Dir is a no-op everywhere.
	path, err := d.WriteGrid("rastercalc1", tinyGrid())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoError(t, d.Release("anything"))
	assert.NoError(t, d.Cleanup())
}

func TestTempMode_WritesReleasesAndCleansUp(t *testing.T) {
	ws := t.TempDir()
	d, err := New(ws, ModeTemp)
	require.NoError(t, err)

	path, err := d.WriteGrid("rastercalc7", tinyGrid())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "scratch", "rastercalc7.asc"), path)

	back, err := raster.Open(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -9999}, back.Cells)

	require.NoError(t, d.Release(path, ""))
	assert.NoFileExists(t, path)

	require.NoError(t, d.Cleanup())
	assert.NoDirExists(t, filepath.Join(ws, "scratch"))
}

func TestKeepMode_LeavesFiles(t *testing.T) {
	ws := t.TempDir()
	d, err := New(ws, ModeKeep)
	require.NoError(t, err)

	path, err := d.WriteGrid("lusub3", tinyGrid())
	require.NoError(t, err)
	require.NoError(t, d.Release(path))
	require.NoError(t, d.Cleanup())

	assert.FileExists(t, path)
}

func TestCleanup_PreexistingDirKept(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "scratch"), 0o755))

	d, err := New(ws, ModeTemp)
	require.NoError(t, err)
	require.NoError(t, d.Cleanup())

	assert.DirExists(t, filepath.Join(ws, "scratch"))
}

func TestNew_ScratchIsFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "scratch"), nil, 0o644))

	_, err := New(ws, ModeTemp)
	assert.ErrorContains(t, err, "not a directory")
}
