// Package scratch manages the per-run directory of intermediate rasters.
package scratch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/raster"
)

// Mode selects what happens to intermediate rasters.
type Mode string

// Scratch modes.
const (
	ModeOff  Mode = "off"  // masks stay in memory, nothing is written
	ModeTemp Mode = "temp" // written per subbasin, deleted once extracted
	ModeKeep Mode = "keep" // written and left in place
)

// ParseMode validates a configured mode; empty means off.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "", ModeOff:
		return ModeOff, nil
	case ModeTemp, ModeKeep:
		return m, nil
	default:
		return "", eris.Errorf("scratch: unknown mode %q (want off, temp or keep)", s)
	}
}

// Dir is a scratch directory. A nil *Dir writes nothing.
type Dir struct {
	Path string
	Mode Mode

	mu      sync.Mutex
	created bool
}

// New returns the scratch directory under workspace, or nil in ModeOff.
func New(workspace string, mode Mode) (*Dir, error) {
	if mode == ModeOff || mode == "" {
		return nil, nil
	}

	path := filepath.Join(workspace, "scratch")
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return nil, eris.Errorf("scratch: %s exists and is not a directory", path)
	case err == nil:
		return &Dir{Path: path, Mode: mode}, nil
	case !os.IsNotExist(err):
		return nil, eris.Wrapf(err, "scratch: stat %s", path)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, eris.Wrapf(err, "scratch: create %s", path)
	}
	return &Dir{Path: path, Mode: mode, created: true}, nil
}

// WriteGrid writes g as <name>.asc and returns the file path.
func (d *Dir) WriteGrid(name string, g *raster.Grid) (string, error) {
	if d == nil {
		return "", nil
	}
	path := filepath.Join(d.Path, name+".asc")
	if err := raster.WriteASCIIFile(path, g); err != nil {
		return "", eris.Wrapf(err, "scratch: write %s", name)
	}
	return path, nil
}

// Release deletes files written for one subbasin unless the mode keeps
// them.
func (d *Dir) Release(paths ...string) error {
	if d == nil || d.Mode == ModeKeep {
		return nil
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "scratch: delete %s", p)
		}
	}
	return nil
}

// Cleanup removes the directory when this run created it and it is empty.
func (d *Dir) Cleanup() error {
	if d == nil || d.Mode == ModeKeep {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.created {
		return nil
	}

	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return eris.Wrapf(err, "scratch: list %s", d.Path)
	}
	if len(entries) > 0 {
		zap.L().Warn("scratch: directory not empty, leaving in place",
			zap.String("path", d.Path),
			zap.Int("entries", len(entries)),
		)
		return nil
	}

	d.created = false
	return eris.Wrapf(os.Remove(d.Path), "scratch: remove %s", d.Path)
}
