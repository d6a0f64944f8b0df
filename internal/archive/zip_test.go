package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, body := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in, archive, member string
		ok                  bool
	}{
		{"subs.shp", "subs.shp", "", false},
		{"tracts.zip", "tracts.zip", "", true},
		{"tracts.ZIP!tl_2010_37_tract10.shp", "tracts.ZIP", "tl_2010_37_tract10.shp", true},
		{"odd!name.shp", "odd!name.shp", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, m, ok := Split(tt.in)
			assert.Equal(t, tt.archive, a)
			assert.Equal(t, tt.member, m)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestExtractor_PlainPath(t *testing.T) {
	e := NewExtractor()
	p, err := e.Resolve("data/lu.asc", ".asc")
	require.NoError(t, err)
	assert.Equal(t, "data/lu.asc", p)
	assert.NoError(t, e.Close())
}

func TestExtractor_SingleMatch(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{
		"tl_2010_37_tract10.shp": "shp",
		"tl_2010_37_tract10.dbf": "dbf",
		"tl_2010_37_tract10.shx": "shx",
	})

	e := NewExtractor()
	p, err := e.Resolve(zipPath, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "tl_2010_37_tract10.shp", filepath.Base(p))
	assert.FileExists(t, filepath.Join(filepath.Dir(p), "tl_2010_37_tract10.dbf"))

	// A second resolve reuses the unpacked copy.
	again, err := e.Resolve(zipPath, ".shp")
	require.NoError(t, err)
	assert.Equal(t, p, again)

	require.NoError(t, e.Close())
	assert.NoFileExists(t, p)
}

func TestExtractor_NamedMember(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{
		"nlcd/lu_2001.flt": "a",
		"nlcd/lu_2001.hdr": "b",
		"nlcd/lu_2011.flt": "c",
		"nlcd/lu_2011.hdr": "d",
	})

	e := NewExtractor()
	defer e.Close() //nolint:errcheck

	_, err := e.Resolve(zipPath, ".flt", ".bil", ".asc")
	assert.ErrorContains(t, err, "got 2")

	p, err := e.Resolve(zipPath+Separator+"nlcd/lu_2011.flt", ".flt")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))

	_, err = e.Resolve(zipPath+Separator+"nlcd/lu_2021.flt", ".flt")
	assert.ErrorContains(t, err, `member "nlcd/lu_2021.flt" not found`)
}

func TestUnzip_EscapingMember(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{"../evil.txt": "x"})
	dest := filepath.Join(t.TempDir(), "out")
	_, err := unzip(zipPath, dest)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.txt"))
}

func TestExtractor_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	e := NewExtractor()
	defer e.Close() //nolint:errcheck
	_, err := e.Resolve(path, ".shp")
	assert.ErrorContains(t, err, "archive: open")
}

func TestUnzip_Directories(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{
		"nlcd/":           "",
		"nlcd/lu_2011.asc": "1",
	})
	dest := filepath.Join(t.TempDir(), "out")

	files, err := unzip(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "nlcd", "lu_2011.asc")}, files)
	assert.DirExists(t, filepath.Join(dest, "nlcd"))
}
