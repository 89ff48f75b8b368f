package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. SQLite has no
// datasets, so the dataset part of every name is ignored.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Savepoints must stay on one connection.
	db.SetMaxOpenConns(1)
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

// Driver implements Store.
func (s *SQLiteStore) Driver() string { return "sqlite" }

// QualifiedName implements Store.
func (s *SQLiteStore) QualifiedName(_, table string) string {
	return quoteIdent(table)
}

// Placeholder implements Store.
func (s *SQLiteStore) Placeholder(string, int) string { return "?" }

// Query implements Store.
func (s *SQLiteStore) Query(ctx context.Context, query string, params ...Param) ([]Row, error) {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rows")
	}
	return out, nil
}

// InsertRows implements Store. Each row runs under its own savepoint so a
// constraint violation rejects only that row.
func (s *SQLiteStore) InsertRows(ctx context.Context, _, table string, columns []string, rows []Row) ([]RowError, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteIdent(c)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var failures []RowError
	for i, row := range ordered(columns, rows) {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT insert_row"); err != nil {
			return nil, eris.Wrap(err, "sqlite: savepoint")
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			failures = append(failures, RowError{Index: i, Err: err})
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT insert_row"); err != nil {
				return nil, eris.Wrap(err, "sqlite: rollback to savepoint")
			}
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT insert_row"); err != nil {
			return nil, eris.Wrap(err, "sqlite: release savepoint")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit insert")
	}
	return failures, nil
}

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context, sc Schema) error {
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	review_id   INTEGER PRIMARY KEY,
	review_text TEXT
);

CREATE TABLE IF NOT EXISTS %s (
	sentiment_id    INTEGER PRIMARY KEY,
	review_id       INTEGER NOT NULL,
	sentiment_label TEXT NOT NULL,
	sentiment_score REAL NOT NULL CHECK (sentiment_score >= 0 AND sentiment_score <= 1),
	model_name      TEXT NOT NULL,
	processed_at    TEXT NOT NULL
);`, quoteIdent(sc.SourceTable), quoteIdent(sc.DestTable))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
