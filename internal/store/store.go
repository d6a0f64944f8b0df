// Package store persists result tables to a database, tagging every row
// with the run that produced it.
package store

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/yadkin-swat/subscale/internal/config"
	"github.com/yadkin-swat/subscale/internal/export"
)

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store saves result tables.
type Store interface {
	// Save writes every row of t under runID and returns the row count.
	Save(ctx context.Context, runID string, t export.Table) (int64, error)
	Close() error
}

// Open returns the store selected by cfg.Driver. The none driver discards
// tables.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nopStore{}, nil
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: sqlite requires store.database_url")
		}
		return NewSQLite(cfg.DatabaseURL)
	case DriverPostgres, "pgx":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

type nopStore struct{}

func (nopStore) Save(context.Context, string, export.Table) (int64, error) { return 0, nil }
func (nopStore) Close() error                                              { return nil }

var unsafeName = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName derives a lower-case SQL table name from a result table name.
func TableName(name string) string {
	n := unsafeName.ReplaceAllString(strings.ToLower(name), "_")
	n = strings.Trim(n, "_")
	if n == "" {
		return "results"
	}
	if n[0] >= '0' && n[0] <= '9' {
		n = "t_" + n
	}
	return n
}

// column is a result column with the SQL type chosen for its values.
type column struct {
	name string
	kind columnKind
}

type columnKind int

const (
	kindText columnKind = iota
	kindInteger
	kindReal
)

// columnsOf types each column from the first row holding a value for it.
func columnsOf(t export.Table) ([]column, error) {
	cols := make([]column, len(t.Columns))
	for i, name := range t.Columns {
		cols[i] = column{name: strings.ToLower(name), kind: kindText}
		if cols[i].name == "run_id" {
			return nil, eris.New("store: column run_id is reserved")
		}
	}

	for j, row := range t.Rows {
		if len(row) != len(cols) {
			return nil, eris.Errorf("store: row %d has %d values, want %d", j, len(row), len(cols))
		}
	}
	if len(t.Rows) > 0 {
		for i, v := range t.Rows[0] {
			switch v.(type) {
			case int, int32, int64:
				cols[i].kind = kindInteger
			case float64, float32:
				cols[i].kind = kindReal
			}
		}
	}
	return cols, nil
}

// withRunID prefixes each row with runID.
func withRunID(runID string, rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, 0, len(r)+1)
		row = append(row, runID)
		row = append(row, r...)
		out[i] = row
	}
	return out
}
