package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/yadkin-swat/subscale/internal/export"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save creates the table on first use and inserts all rows in one
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, runID string, t export.Table) (int64, error) {
	cols, err := columnsOf(t)
	if err != nil {
		return 0, err
	}
	table := TableName(t.Name)

	if _, err := s.db.ExecContext(ctx, sqliteCreate(table, cols)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: create table %s", table)
	}
	if len(t.Rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert(table, cols))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range withRunID(runID, t.Rows) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert row %d into %s", i, table)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}

	n := int64(len(t.Rows))
	zap.L().Debug("sqlite: saved table",
		zap.String("table", table),
		zap.String("run_id", runID),
		zap.Int64("rows", n),
	)
	return n, nil
}

// Count returns the number of rows stored for runID in the named table.
func (s *SQLiteStore) Count(ctx context.Context, name, runID string) (int64, error) {
	table := TableName(name)
	var n int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE run_id = ?`, sqliteQuote(table)),
		runID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}

func sqliteQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func sqliteCreate(table string, cols []column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\trun_id TEXT NOT NULL", sqliteQuote(table))
	for _, c := range cols {
		typ := "TEXT"
		switch c.kind {
		case kindInteger:
			typ = "INTEGER"
		case kindReal:
			typ = "REAL"
		}
		fmt.Fprintf(&b, ",\n\t%s %s", sqliteQuote(c.name), typ)
	}
	b.WriteString("\n)")
	return b.String()
}

func sqliteInsert(table string, cols []column) string {
	names := []string{"run_id"}
	marks := []string{"?"}
	for _, c := range cols {
		names = append(names, sqliteQuote(c.name))
		marks = append(marks, "?")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteQuote(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}
