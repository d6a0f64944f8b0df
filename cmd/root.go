package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "subscale",
	Short: "Scale land cover and census tract data to watershed subbasins",
	Long: `Masks categorical rasters by each watershed subbasin and writes per-subbasin
tables: land-cover class percentages (landcover) and census tract overlap
fractions for social vulnerability scaling (tracts).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := applyFlags(cmd, cfg); err != nil {
			return fmt.Errorf("apply flags: %w", err)
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("workspace", "", "directory relative paths resolve against (default from config)")
	f.String("subbasins", "", "subbasin polygon shapefile")
	f.String("subbasin-raster", "", "subbasin zone raster; rasterized from the shapefile when empty")
	f.String("id-field", "", "subbasin ID attribute")
	f.Int("concurrency", 0, "subbasins processed in parallel")
	f.String("scratch", "", "intermediate rasters: off, temp or keep")
	f.Bool("strict", false, "fail when per-subbasin percentages do not sum to 100")
	f.String("format", "", "output format: auto, csv or xlsx")
	f.Int("precision", 0, "float digits in CSV output (-1 for shortest)")
	f.String("summary", "", "write a YAML run summary to this path")
	f.String("store", "", "result store driver: none, sqlite or postgres")
	f.String("database-url", "", "store DSN or file path")
	f.String("log-level", "", "log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
