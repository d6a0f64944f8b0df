package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/export"
	"github.com/yadkin-swat/subscale/internal/zonal"
)

var landcoverCmd = &cobra.Command{
	Use:   "landcover",
	Short: "Land-cover class percentages per subbasin",
	Long: `Masks the categorical land-cover raster by each subbasin and writes the
area share of every class present (SUB, VALUE, AREA_PERC). Subbasins are
processed in shapefile record order.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		j := newJob(cfg, "landcover")
		defer j.close()

		src, err := j.openRaster("landcover.raster", cfg.LandCover.Raster)
		if err != nil {
			return err
		}
		if err := j.prepare(src); err != nil {
			return err
		}

		exts, err := j.extract(ctx, src, "lusub")
		if err != nil {
			return err
		}

		rows := zonal.LandCover(exts, j.cellArea)
		if err := j.check(zonal.LandCoverSums(rows)); err != nil {
			return err
		}

		table := export.LandCoverTable(tableName(cfg.LandCover.Output), rows, cfg.LandCover.IncludeArea)
		if err := j.write(cfg.LandCover.Output, table); err != nil {
			return err
		}
		if err := j.persist(ctx, table); err != nil {
			return err
		}

		j.log.Debug("land cover rows", zap.Int("rows", len(rows)))
		return j.finish()
	},
}

func init() {
	landcoverCmd.Flags().String("raster", "", "categorical land-cover raster (.asc, .flt or .bil)")
	landcoverCmd.Flags().String("output", "", "output table path (default lu_allsubs.csv)")
	landcoverCmd.Flags().Bool("include-area", false, "add an AREA_KM2 column")
	rootCmd.AddCommand(landcoverCmd)
}
