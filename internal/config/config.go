package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Workspace string          `yaml:"workspace" mapstructure:"workspace"`
	Subbasins SubbasinsConfig `yaml:"subbasins" mapstructure:"subbasins"`
	Raster    RasterConfig    `yaml:"raster" mapstructure:"raster"`
	LandCover LandCoverConfig `yaml:"landcover" mapstructure:"landcover"`
	Tracts    TractsConfig    `yaml:"tracts" mapstructure:"tracts"`
	SVI       SVIConfig       `yaml:"svi" mapstructure:"svi"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SubbasinsConfig locates the subbasin polygon layer and its optional
// rasterized counterpart.
type SubbasinsConfig struct {
	Shapefile string `yaml:"shapefile" mapstructure:"shapefile"`
	IDField   string `yaml:"id_field" mapstructure:"id_field"`
	Raster    string `yaml:"raster" mapstructure:"raster"`
}

// RasterConfig holds grid-wide constants.
type RasterConfig struct {
	CellAreaKM2    float64 `yaml:"cell_area_km2" mapstructure:"cell_area_km2"`
	AlignTolerance float64 `yaml:"align_tolerance" mapstructure:"align_tolerance"`
	CellSizeToKM2  float64 `yaml:"cell_size_to_km2" mapstructure:"cell_size_to_km2"`
}

// LandCoverConfig configures the land-cover percentage job.
type LandCoverConfig struct {
	Raster      string `yaml:"raster" mapstructure:"raster"`
	Output      string `yaml:"output" mapstructure:"output"`
	IncludeArea bool   `yaml:"include_area" mapstructure:"include_area"`
}

// TractsConfig configures the census tract scaling job.
type TractsConfig struct {
	Raster     string `yaml:"raster" mapstructure:"raster"`
	Shapefile  string `yaml:"shapefile" mapstructure:"shapefile"`
	ValueField string `yaml:"value_field" mapstructure:"value_field"`
	FIPSField  string `yaml:"fips_field" mapstructure:"fips_field"`
	AreaField  string `yaml:"area_field" mapstructure:"area_field"`
	Output     string `yaml:"output" mapstructure:"output"`
}

// SVIConfig configures the optional weighted vulnerability index output.
type SVIConfig struct {
	CSV         string `yaml:"csv" mapstructure:"csv"`
	FIPSColumn  string `yaml:"fips_column" mapstructure:"fips_column"`
	ValueColumn string `yaml:"value_column" mapstructure:"value_column"`
	Output      string `yaml:"output" mapstructure:"output"`
}

// OutputConfig controls table serialization.
type OutputConfig struct {
	Format    string `yaml:"format" mapstructure:"format"`
	Precision int    `yaml:"precision" mapstructure:"precision"`
	Summary   string `yaml:"summary" mapstructure:"summary"`
}

// StoreConfig configures the optional database sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RunConfig configures per-run behavior.
type RunConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	Scratch     string  `yaml:"scratch" mapstructure:"scratch"`
	Strict      bool    `yaml:"strict" mapstructure:"strict"`
	Tolerance   float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SUBSCALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("workspace", ".")
	v.SetDefault("subbasins.shapefile", "yadkin_subs_albers.shp")
	v.SetDefault("subbasins.id_field", "Subbasin")
	v.SetDefault("raster.cell_area_km2", 0.0009)
	v.SetDefault("raster.align_tolerance", 1e-6)
	v.SetDefault("raster.cell_size_to_km2", 1e-6)
	v.SetDefault("subbasins.raster", "")
	v.SetDefault("landcover.raster", "")
	v.SetDefault("landcover.output", "lu_allsubs.csv")
	v.SetDefault("tracts.raster", "")
	v.SetDefault("tracts.shapefile", "")
	v.SetDefault("tracts.area_field", "")
	v.SetDefault("svi.csv", "")
	v.SetDefault("svi.output", "")
	v.SetDefault("output.summary", "")
	v.SetDefault("tracts.value_field", "VALUE")
	v.SetDefault("tracts.fips_field", "FIPS")
	v.SetDefault("tracts.output", "svibd_scaling_allsubs.csv")
	v.SetDefault("svi.fips_column", "FIPS")
	v.SetDefault("svi.value_column", "SOVI")
	v.SetDefault("output.format", "auto")
	v.SetDefault("output.precision", -1)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.scratch", "off")
	v.SetDefault("run.strict", false)
	v.SetDefault("run.tolerance", 0.01)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// CellArea returns the area of one grid cell in square kilometres. A zero
// configured constant falls back to the grid's own cell size.
func (c RasterConfig) CellArea(cellSize float64) float64 {
	if c.CellAreaKM2 > 0 {
		return c.CellAreaKM2
	}
	return cellSize * cellSize * c.CellSizeToKM2
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
