// Package db provides shared PostgreSQL helpers for bulk loads.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into schema.table using the COPY protocol. The
// copy is all-or-nothing: one bad row fails the whole call. An empty schema
// targets the connection's search_path.
func CopyFrom(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, Identifier(schema, table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", Identifier(schema, table).Sanitize())
	}
	return n, nil
}

// Identifier builds a possibly schema-qualified identifier.
func Identifier(schema, table string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}
