package export

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/yadkin-swat/subscale/internal/zonal"
)

// Summary is the YAML manifest written alongside a run's outputs.
type Summary struct {
	RunID      string            `yaml:"run_id"`
	Command    string            `yaml:"command"`
	StartedAt  time.Time         `yaml:"started_at"`
	Duration   string            `yaml:"duration"`
	Inputs     map[string]string `yaml:"inputs"`
	Outputs    []string          `yaml:"outputs"`
	Subbasins  int               `yaml:"subbasins"`
	Empty      []int             `yaml:"empty_subbasins,omitempty"`
	Rows       int               `yaml:"rows"`
	CellArea   float64           `yaml:"cell_area_km2"`
	Tolerance  float64           `yaml:"tolerance"`
	Deviations []Deviation       `yaml:"deviations,omitempty"`
	Overruns   []Overrun         `yaml:"tract_overruns,omitempty"`
	MissingSVI []string          `yaml:"missing_svi,omitempty"`
}

// Deviation records a subbasin whose shares do not sum to 100.
type Deviation struct {
	Sub int     `yaml:"sub"`
	Sum float64 `yaml:"sum"`
}

// Deviations converts share-sum check results.
func Deviations(off []zonal.ShareSum) []Deviation {
	if len(off) == 0 {
		return nil
	}
	out := make([]Deviation, len(off))
	for i, s := range off {
		out[i] = Deviation{Sub: s.Sub, Sum: s.Sum}
	}
	return out
}

// Overrun records a tract row whose tract_perc exceeds 100.
type Overrun struct {
	Sub       int     `yaml:"sub"`
	FIPS      string  `yaml:"fips"`
	TractPerc float64 `yaml:"tract_perc"`
}

// Overruns converts tract_perc check results.
func Overruns(over []zonal.TractOverrun) []Overrun {
	if len(over) == 0 {
		return nil
	}
	out := make([]Overrun, len(over))
	for i, o := range over {
		out[i] = Overrun{Sub: o.Sub, FIPS: o.FIPS, TractPerc: o.Perc}
	}
	return out
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s Summary) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return eris.Wrap(err, "export: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write summary %s", path)
	}
	return nil
}

// ReadSummary loads a manifest written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, eris.Wrapf(err, "export: read summary %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, eris.Wrap(err, "export: parse summary")
	}
	return s, nil
}
