// Package archive unpacks zipped inputs such as the shapefile and raster
// bundles published by the Census Bureau and NLCD.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Separator splits an archive path from the member to use,
// as in tl_2010_37_tract10.zip!tl_2010_37_tract10.shp.
const Separator = "!"

// Split reports whether path names a zip archive and, if so, the member
// requested after Separator.
func Split(path string) (archivePath, member string, ok bool) {
	archivePath, member, _ = strings.Cut(path, Separator)
	if !strings.EqualFold(filepath.Ext(archivePath), ".zip") {
		return path, "", false
	}
	return archivePath, member, true
}

// Extractor unpacks archives into a private temporary directory, once per
// archive, and removes it on Close.
type Extractor struct {
	mu       sync.Mutex
	dir      string
	unpacked map[string]unpacked
}

type unpacked struct {
	dest  string
	files []string
}

// NewExtractor returns an Extractor; the temp directory is created on
// first use.
func NewExtractor() *Extractor {
	return &Extractor{unpacked: make(map[string]unpacked)}
}

// Resolve returns a filesystem path for an input. Plain paths are
// returned unchanged. For archives the named member is used, or else the
// only member whose extension is in exts.
func (e *Extractor) Resolve(path string, exts ...string) (string, error) {
	archivePath, member, ok := Split(path)
	if !ok {
		return path, nil
	}

	dest, files, err := e.unpack(archivePath)
	if err != nil {
		return "", err
	}

	if member != "" {
		p := filepath.Join(dest, filepath.FromSlash(member))
		if _, err := os.Stat(p); err != nil {
			return "", eris.Errorf("archive: member %q not found in %s", member, archivePath)
		}
		return p, nil
	}

	var matches []string
	for _, f := range files {
		for _, ext := range exts {
			if strings.EqualFold(filepath.Ext(f), ext) {
				matches = append(matches, f)
				break
			}
		}
	}
	if len(matches) != 1 {
		return "", eris.Errorf("archive: expected exactly 1 %s member in %s, got %d (name one with %s)",
			strings.Join(exts, "/"), archivePath, len(matches), Separator)
	}
	return matches[0], nil
}

func (e *Extractor) unpack(archivePath string) (string, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dir == "" {
		dir, err := os.MkdirTemp("", "subscale-inputs-")
		if err != nil {
			return "", nil, eris.Wrap(err, "archive: create temp dir")
		}
		e.dir = dir
	}

	key := filepath.Clean(archivePath)
	if u, ok := e.unpacked[key]; ok {
		return u.dest, u.files, nil
	}

	dest := filepath.Join(e.dir, strconv.Itoa(len(e.unpacked)))
	files, err := unzip(archivePath, dest)
	if err != nil {
		return "", nil, err
	}
	e.unpacked[key] = unpacked{dest: dest, files: files}

	zap.L().Debug("archive: unpacked",
		zap.String("archive", archivePath),
		zap.String("dest", dest),
		zap.Int("files", len(files)),
	)
	return dest, files, nil
}

// Close removes everything unpacked.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dir == "" {
		return nil
	}
	err := os.RemoveAll(e.dir)
	e.dir = ""
	e.unpacked = make(map[string]unpacked)
	return eris.Wrap(err, "archive: remove temp dir")
}

// unzip writes every member of archivePath under dest and returns the paths
// of the regular files, in archive order.
func unzip(archivePath, dest string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, eris.Wrapf(err, "archive: open %s", archivePath)
	}
	defer r.Close() //nolint:errcheck

	files := make([]string, 0, len(r.File))
	for _, m := range r.File {
		name := filepath.FromSlash(m.Name)
		if !filepath.IsLocal(name) {
			return files, eris.Errorf("archive: member %q escapes %s", m.Name, archivePath)
		}

		p := filepath.Join(dest, name)
		if m.FileInfo().IsDir() {
			if err := os.MkdirAll(p, 0o755); err != nil {
				return files, eris.Wrapf(err, "archive: create %s", m.Name)
			}
			continue
		}
		if err := unzipMember(m, p); err != nil {
			return files, err
		}
		files = append(files, p)
	}
	return files, nil
}

func unzipMember(m *zip.File, p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return eris.Wrapf(err, "archive: create parent of %s", m.Name)
	}

	rc, err := m.Open()
	if err != nil {
		return eris.Wrapf(err, "archive: read %s", m.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrapf(err, "archive: create %s", m.Name)
	}
	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return eris.Wrapf(err, "archive: extract %s", m.Name)
}
