package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yadkin-swat/subscale/internal/config"
)

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	fs := cmd.Flags()

	for name, dst := range map[string]*string{
		"workspace":       &c.Workspace,
		"subbasins":       &c.Subbasins.Shapefile,
		"subbasin-raster": &c.Subbasins.Raster,
		"id-field":        &c.Subbasins.IDField,
		"scratch":         &c.Run.Scratch,
		"format":          &c.Output.Format,
		"summary":         &c.Output.Summary,
		"store":           &c.Store.Driver,
		"database-url":    &c.Store.DatabaseURL,
		"log-level":       &c.Log.Level,
	} {
		if err := setString(fs, name, dst); err != nil {
			return err
		}
	}

	for name, dst := range map[string]*int{
		"concurrency": &c.Run.Concurrency,
		"precision":   &c.Output.Precision,
	} {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	if f := fs.Lookup("strict"); f != nil && f.Changed {
		v, err := fs.GetBool("strict")
		if err != nil {
			return err
		}
		c.Run.Strict = v
	}

	switch cmd.Name() {
	case "landcover":
		if err := setString(fs, "raster", &c.LandCover.Raster); err != nil {
			return err
		}
		if err := setString(fs, "output", &c.LandCover.Output); err != nil {
			return err
		}
		if f := fs.Lookup("include-area"); f != nil && f.Changed {
			v, err := fs.GetBool("include-area")
			if err != nil {
				return err
			}
			c.LandCover.IncludeArea = v
		}
	case "tracts":
		for name, dst := range map[string]*string{
			"raster":     &c.Tracts.Raster,
			"shapefile":  &c.Tracts.Shapefile,
			"output":     &c.Tracts.Output,
			"svi":        &c.SVI.CSV,
			"svi-output": &c.SVI.Output,
		} {
			if err := setString(fs, name, dst); err != nil {
				return err
			}
		}
	}

	return nil
}

func setString(fs *pflag.FlagSet, name string, dst *string) error {
	f := fs.Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	v, err := fs.GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
