package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/db"
)

// PostgresStore implements Store using pgxpool. Datasets map to schemas.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a small connection pool. A batch
// run is sequential so the pool never needs more than a couple of conns.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 2
	pgxCfg.MinConns = 1
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Driver implements Store.
func (s *PostgresStore) Driver() string { return "postgres" }

// QualifiedName implements Store.
func (s *PostgresStore) QualifiedName(dataset, table string) string {
	return db.Identifier(dataset, table).Sanitize()
}

// Placeholder implements Store.
func (s *PostgresStore) Placeholder(_ string, pos int) string {
	return fmt.Sprintf("$%d", pos)
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, query string, params ...Param) ([]Row, error) {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan rows")
	}
	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}

// InsertRows implements Store. Rows go through COPY first; if the batch is
// rejected, they are replayed one by one inside a transaction with a savepoint
// per row so good rows still land and bad ones are reported.
func (s *PostgresStore) InsertRows(ctx context.Context, dataset, table string, columns []string, rows []Row) ([]RowError, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	values := ordered(columns, rows)

	_, copyErr := db.CopyFrom(ctx, s.pool, dataset, table, columns, values)
	if copyErr == nil {
		return nil, nil
	}
	failures, err := s.insertEach(ctx, dataset, table, columns, values)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: row-by-row insert after copy error (%v)", copyErr)
	}
	return failures, nil
}

func (s *PostgresStore) insertEach(ctx context.Context, dataset, table string, columns []string, values [][]any) ([]RowError, error) {
	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.QualifiedName(dataset, table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin insert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var failures []RowError
	for i, row := range values {
		if _, err := tx.Exec(ctx, "SAVEPOINT insert_row"); err != nil {
			return nil, eris.Wrap(err, "postgres: savepoint")
		}
		if _, err := tx.Exec(ctx, insertSQL, row...); err != nil {
			if !rowLevel(err) {
				return nil, eris.Wrapf(err, "postgres: insert row %d", i)
			}
			failures = append(failures, RowError{Index: i, Err: err})
			if _, err := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT insert_row"); err != nil {
				return nil, eris.Wrap(err, "postgres: rollback to savepoint")
			}
			continue
		}
		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT insert_row"); err != nil {
			return nil, eris.Wrap(err, "postgres: release savepoint")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit insert")
	}
	return failures, nil
}

// rowLevel reports whether err rejects a single row's data rather than the
// statement as a whole. Class 42 covers undefined tables and columns.
func rowLevel(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return !strings.HasPrefix(pgErr.Code, "42") && !strings.HasPrefix(pgErr.Code, "08")
}

// Migrate implements Store.
func (s *PostgresStore) Migrate(ctx context.Context, sc Schema) error {
	stmt := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
	review_id   BIGINT PRIMARY KEY,
	review_text TEXT
);

CREATE TABLE IF NOT EXISTS %s (
	sentiment_id    BIGINT PRIMARY KEY,
	review_id       BIGINT NOT NULL,
	sentiment_label TEXT NOT NULL,
	sentiment_score DOUBLE PRECISION NOT NULL CHECK (sentiment_score >= 0 AND sentiment_score <= 1),
	model_name      TEXT NOT NULL,
	processed_at    TEXT NOT NULL
);`,
		pgx.Identifier{sc.SourceDataset}.Sanitize(),
		pgx.Identifier{sc.DestDataset}.Sanitize(),
		s.QualifiedName(sc.SourceDataset, sc.SourceTable),
		s.QualifiedName(sc.DestDataset, sc.DestTable),
	)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
