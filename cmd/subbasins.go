package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yadkin-swat/subscale/internal/raster"
	"github.com/yadkin-swat/subscale/internal/subbasin"
)

var subbasinsCmd = &cobra.Command{
	Use:   "subbasins",
	Short: "List subbasin IDs and their cell counts",
	Long: `Reads subbasin IDs from the shapefile in record order and, when a zone
raster or template raster is available, prints how many grid cells each
subbasin covers.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		j := newJob(cfg, "subbasins")
		defer j.close()

		shpPath, err := j.input("subbasins.shapefile", cfg.Subbasins.Shapefile, shapefileExts)
		if err != nil {
			return err
		}
		ids, err := subbasin.ReadIDs(shpPath, cfg.Subbasins.IDField)
		if err != nil {
			return err
		}

		template, _ := cmd.Flags().GetString("template")
		var zones *raster.ZoneIndex
		if cfg.Subbasins.Raster != "" || template != "" {
			var header raster.Header
			if cfg.Subbasins.Raster == "" {
				g, err := j.openRaster("template", template)
				if err != nil {
					return err
				}
				header = g.Header
			}
			g, err := j.loadZones(shpPath, header)
			if err != nil {
				return err
			}
			zones = raster.IndexZones(g)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		if zones == nil {
			fmt.Fprintln(w, "SUB")
			for _, id := range ids {
				fmt.Fprintf(w, "%d\n", id)
			}
			return w.Flush()
		}

		fmt.Fprintln(w, "SUB\tCELLS")
		for _, id := range ids {
			fmt.Fprintf(w, "%d\t%d\n", id, zones.Mask(int32(id)).Count())
		}
		return w.Flush()
	},
}

func init() {
	subbasinsCmd.Flags().String("template", "", "raster whose grid the polygons are rasterized onto")
	rootCmd.AddCommand(subbasinsCmd)
}
