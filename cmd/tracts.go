package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/export"
	"github.com/yadkin-swat/subscale/internal/raster"
	"github.com/yadkin-swat/subscale/internal/tract"
	"github.com/yadkin-swat/subscale/internal/zonal"
)

// defaultWeightedOutput is used when svi.csv is set without svi.output.
const defaultWeightedOutput = "svi_index_allsubs.csv"

var tractsCmd = &cobra.Command{
	Use:   "tracts",
	Short: "Census tract scaling fractions per subbasin",
	Long: `Masks the census tract raster by each subbasin and writes, for every tract
present, the share of the tract inside the subbasin and the share of the
subbasin inside the tract (SUB, fips, tract_perc, sub_perc). With --svi the
per-tract vulnerability scores are also scaled to a per-subbasin index.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		j := newJob(cfg, "tracts")
		defer j.close()

		src, err := j.openRaster("tracts.raster", cfg.Tracts.Raster)
		if err != nil {
			return err
		}
		if err := j.prepare(src); err != nil {
			return err
		}

		table := tract.FromRaster(raster.CountClasses(src), j.cellArea)
		if cfg.Tracts.Shapefile != "" {
			shpPath, err := j.input("tracts.shapefile", cfg.Tracts.Shapefile, shapefileExts)
			if err != nil {
				return err
			}
			attrs, err := tract.LoadTable(shpPath, cfg.Tracts.ValueField, cfg.Tracts.FIPSField, cfg.Tracts.AreaField)
			if err != nil {
				return err
			}
			attrs.Fill(table)
			table = attrs
		}
		j.log.Info("tract table ready", zap.Int("tracts", len(table)))

		exts, err := j.extract(ctx, src, "svibdsub")
		if err != nil {
			return err
		}

		rows, err := zonal.Tracts(exts, table, j.cellArea)
		if err != nil {
			return err
		}
		if err := j.check(zonal.TractSums(rows)); err != nil {
			return err
		}
		if err := j.checkTracts(rows); err != nil {
			return err
		}

		out := export.TractTable(tableName(cfg.Tracts.Output), rows)
		if err := j.write(cfg.Tracts.Output, out); err != nil {
			return err
		}
		tables := []export.Table{out}

		if cfg.SVI.CSV != "" {
			weighted, err := scaleSVI(j, rows)
			if err != nil {
				return err
			}
			tables = append(tables, weighted)
		}

		if err := j.persist(ctx, tables...); err != nil {
			return err
		}
		return j.finish()
	},
}

// scaleSVI weights tract vulnerability scores by subbasin share and
// writes the per-subbasin index table.
func scaleSVI(j *job, rows []zonal.TractRow) (export.Table, error) {
	path, err := j.input("svi.csv", cfg.SVI.CSV, tableExts)
	if err != nil {
		return export.Table{}, err
	}
	scores, err := tract.ReadSVIFile(path, cfg.SVI.FIPSColumn, cfg.SVI.ValueColumn)
	if err != nil {
		return export.Table{}, err
	}

	weighted, missing := zonal.WeightedIndex(rows, scores)
	if len(missing) > 0 {
		j.log.Warn("tracts without a vulnerability score",
			zap.Int("count", len(missing)),
			zap.Strings("fips", missing),
		)
		j.summary.MissingSVI = missing
	}

	output := cfg.SVI.Output
	if output == "" {
		output = defaultWeightedOutput
	}
	t := export.WeightedTable(tableName(output), weighted)
	if err := j.write(output, t); err != nil {
		return export.Table{}, err
	}
	return t, nil
}

func init() {
	tractsCmd.Flags().String("raster", "", "census tract raster (.asc, .flt or .bil)")
	tractsCmd.Flags().String("shapefile", "", "tract shapefile mapping raster values to FIPS and area")
	tractsCmd.Flags().String("output", "", "output table path (default svibd_scaling_allsubs.csv)")
	tractsCmd.Flags().String("svi", "", "CSV of per-tract vulnerability scores")
	tractsCmd.Flags().String("svi-output", "", "weighted index output path")
	rootCmd.AddCommand(tractsCmd)
}
