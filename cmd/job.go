package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/archive"
	"github.com/yadkin-swat/subscale/internal/config"
	"github.com/yadkin-swat/subscale/internal/export"
	"github.com/yadkin-swat/subscale/internal/raster"
	"github.com/yadkin-swat/subscale/internal/scratch"
	"github.com/yadkin-swat/subscale/internal/store"
	"github.com/yadkin-swat/subscale/internal/subbasin"
	"github.com/yadkin-swat/subscale/internal/zonal"
)

// job carries the state shared by one landcover or tracts run.
type job struct {
	cfg     *config.Config
	log     *zap.Logger
	name    string
	runID   string
	started time.Time

	ids      []int
	zones    *raster.ZoneIndex
	scratch  *scratch.Dir
	runner   *zonal.Runner
	cellArea float64

	inputs  *archive.Extractor
	summary export.Summary
}

// resolve makes p relative to the workspace unless it is absolute.
func (j *job) resolve(p string) string {
	return resolvePath(j.cfg.Workspace, p)
}

func resolvePath(workspace, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// Input extensions accepted from archives.
var (
	rasterExts    = []string{".asc", ".txt", ".flt", ".bil"}
	shapefileExts = []string{".shp"}
	tableExts     = []string{".csv", ".xlsx"}
)

// newJob starts a run; close must be deferred by the caller.
func newJob(c *config.Config, name string) *job {
	j := &job{
		cfg:     c,
		name:    name,
		runID:   uuid.New().String(),
		started: time.Now().UTC(),
		inputs:  archive.NewExtractor(),
	}
	j.log = zap.L().With(zap.String("command", name), zap.String("run_id", j.runID))
	j.summary = export.Summary{
		RunID:     j.runID,
		Command:   name,
		StartedAt: j.started,
		Inputs:    make(map[string]string),
		Tolerance: c.Run.Tolerance,
	}
	return j
}

// input resolves a configured path against the workspace and unpacks it
// when it points into a zip archive. key names the input in the summary.
func (j *job) input(key, path string, exts []string) (string, error) {
	if path == "" {
		return "", eris.Errorf("%s is not set", key)
	}
	p, err := j.inputs.Resolve(j.resolve(path), exts...)
	if err != nil {
		return "", eris.Wrapf(err, "%s: resolve %s", j.name, key)
	}
	j.summary.Inputs[key] = j.resolve(path)
	return p, nil
}

// openRaster opens a required raster input.
func (j *job) openRaster(key, path string) (*raster.Grid, error) {
	p, err := j.input(key, path, rasterExts)
	if err != nil {
		return nil, err
	}
	return raster.Open(p)
}

// prepare resolves the subbasin list and the zone grid matching src and
// builds the runner.
func (j *job) prepare(src *raster.Grid) error {
	c := j.cfg

	shpPath, err := j.input("subbasins.shapefile", c.Subbasins.Shapefile, shapefileExts)
	if err != nil {
		return err
	}
	ids, err := subbasin.ReadIDs(shpPath, c.Subbasins.IDField)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return eris.Errorf("%s: no subbasins in %s", j.name, shpPath)
	}
	j.ids = ids

	zoneGrid, err := j.loadZones(shpPath, src.Header)
	if err != nil {
		return err
	}
	j.zones = raster.IndexZones(zoneGrid)

	mode, err := scratch.ParseMode(c.Run.Scratch)
	if err != nil {
		return err
	}
	j.scratch, err = scratch.New(c.Workspace, mode)
	if err != nil {
		return err
	}

	j.cellArea = c.Raster.CellArea(src.CellSize)
	j.runner = &zonal.Runner{
		Zones:       j.zones,
		Scratch:     j.scratch,
		Concurrency: c.Run.Concurrency,
		Tolerance:   c.Raster.AlignTolerance,
	}

	j.summary.Subbasins = len(ids)
	j.summary.CellArea = j.cellArea

	j.log.Info("subbasins resolved",
		zap.Int("subbasins", len(ids)),
		zap.Int("zones_on_grid", len(j.zones.Zones())),
		zap.Float64("cell_area_km2", j.cellArea),
		zap.String("scratch", string(mode)),
	)
	return nil
}

// close removes scratch and unpacked inputs; safe after finish.
func (j *job) close() {
	if err := j.scratch.Cleanup(); err != nil {
		j.log.Warn("scratch cleanup failed", zap.Error(err))
	}
	if err := j.inputs.Close(); err != nil {
		j.log.Warn("input cleanup failed", zap.Error(err))
	}
}

// loadZones opens the configured zone raster, or burns the subbasin
// polygons onto the template grid.
func (j *job) loadZones(shpPath string, template raster.Header) (*raster.Grid, error) {
	if j.cfg.Subbasins.Raster != "" {
		return j.openRaster("subbasins.raster", j.cfg.Subbasins.Raster)
	}
	zones, err := subbasin.ReadZones(shpPath, j.cfg.Subbasins.IDField)
	if err != nil {
		return nil, err
	}
	return raster.Rasterize(zones, template), nil
}

// extract runs the runner and records empty subbasins in the summary.
func (j *job) extract(ctx context.Context, src *raster.Grid, clipPrefix string) ([]zonal.Extraction, error) {
	exts, err := j.runner.Extract(ctx, j.ids, src, clipPrefix)
	if err != nil {
		return nil, err
	}
	for _, e := range exts {
		if e.MaskCells == 0 {
			j.summary.Empty = append(j.summary.Empty, e.Sub)
		}
	}
	return exts, nil
}

// check reports subbasins whose percentages miss 100; strict runs fail.
func (j *job) check(sums []zonal.ShareSum) error {
	off := zonal.CheckShares(sums, j.cfg.Run.Tolerance)
	j.summary.Deviations = export.Deviations(off)
	for _, s := range off {
		j.log.Warn("subbasin shares do not sum to 100",
			zap.Int("sub", s.Sub),
			zap.Float64("sum", s.Sum),
		)
	}
	if len(off) > 0 && j.cfg.Run.Strict {
		return eris.Errorf("%s: %d subbasins off by more than %g percentage points", j.name, len(off), j.cfg.Run.Tolerance)
	}
	return nil
}

// checkTracts reports tract rows claiming more than the whole tract; strict
// runs fail.
func (j *job) checkTracts(rows []zonal.TractRow) error {
	over := zonal.CheckTractPerc(rows, j.cfg.Run.Tolerance)
	j.summary.Overruns = export.Overruns(over)
	for _, o := range over {
		j.log.Warn("tract share exceeds tract area",
			zap.Int("sub", o.Sub),
			zap.String("fips", o.FIPS),
			zap.Float64("tract_perc", o.Perc),
		)
	}
	if len(over) > 0 && j.cfg.Run.Strict {
		return eris.Errorf("%s: %d tract rows exceed 100%% of their tract area", j.name, len(over))
	}
	return nil
}

// write exports t to the workspace-relative path and records it.
func (j *job) write(path string, t export.Table) error {
	out := j.resolve(path)
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "%s: create output dir", j.name)
		}
	}
	if err := export.Write(out, t, export.Options{
		Format:    j.cfg.Output.Format,
		Precision: j.cfg.Output.Precision,
	}); err != nil {
		return err
	}
	j.summary.Outputs = append(j.summary.Outputs, out)
	j.summary.Rows += len(t.Rows)
	return nil
}

// persist saves tables to the configured store.
func (j *job) persist(ctx context.Context, tables ...export.Table) error {
	st, err := store.Open(ctx, j.cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	for _, t := range tables {
		n, err := st.Save(ctx, j.runID, t)
		if err != nil {
			return err
		}
		if n > 0 {
			j.log.Info("table stored",
				zap.String("driver", j.cfg.Store.Driver),
				zap.String("table", store.TableName(t.Name)),
				zap.Int64("rows", n),
			)
		}
	}
	return nil
}

// finish writes the summary and removes the scratch directory.
func (j *job) finish() error {
	if err := j.scratch.Cleanup(); err != nil {
		return err
	}

	j.summary.Duration = time.Since(j.started).Round(time.Millisecond).String()
	if j.cfg.Output.Summary != "" {
		if err := export.WriteSummary(j.resolve(j.cfg.Output.Summary), j.summary); err != nil {
			return err
		}
	}

	j.log.Info("run complete",
		zap.Int("subbasins", j.summary.Subbasins),
		zap.Int("empty", len(j.summary.Empty)),
		zap.Int("rows", j.summary.Rows),
		zap.Int("deviations", len(j.summary.Deviations)),
		zap.Int("overruns", len(j.summary.Overruns)),
		zap.String("duration", j.summary.Duration),
	)
	return nil
}

// tableName derives a result table name from its output path.
func tableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
