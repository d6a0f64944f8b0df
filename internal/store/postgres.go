package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yadkin-swat/subscale/internal/export"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresStore implements Store using pgxpool and the COPY protocol.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Save creates the table if needed, then bulk-loads the rows with COPY.
func (s *PostgresStore) Save(ctx context.Context, runID string, t export.Table) (int64, error) {
	cols, err := columnsOf(t)
	if err != nil {
		return 0, err
	}
	table := TableName(t.Name)

	if _, err := s.pool.Exec(ctx, postgresCreate(table, cols)); err != nil {
		return 0, eris.Wrapf(err, "postgres: create table %s", table)
	}
	if len(t.Rows) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(cols)+1)
	names = append(names, "run_id")
	for _, c := range cols {
		names = append(names, c.name)
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, names, pgx.CopyFromRows(withRunID(runID, t.Rows)))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: COPY INTO %s", table)
	}

	zap.L().Debug("postgres: saved table",
		zap.String("table", table),
		zap.String("run_id", runID),
		zap.Int64("rows", n),
	)
	return n, nil
}

func postgresCreate(table string, cols []column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\trun_id TEXT NOT NULL", pgx.Identifier{table}.Sanitize())
	for _, c := range cols {
		typ := "TEXT"
		switch c.kind {
		case kindInteger:
			typ = "BIGINT"
		case kindReal:
			typ = "DOUBLE PRECISION"
		}
		fmt.Fprintf(&b, ",\n\t%s %s", pgx.Identifier{c.name}.Sanitize(), typ)
	}
	b.WriteString("\n)")
	return b.String()
}
