// Package store adapts analytical stores (BigQuery, PostgreSQL, SQLite) to
// the narrow query / bulk-insert contract the pipeline needs.
package store

import "context"

// Row is a result or insert row keyed by column name.
type Row map[string]any

// Param is a bound query parameter. Named backends use Name; positional
// backends bind in the order params are passed.
type Param struct {
	Name  string
	Value any
}

// RowError is a single row rejected by InsertRows. Index refers to the
// position in the rows slice passed in.
type RowError struct {
	Index int
	Err   error
}

// Schema names the tables Migrate ensures exist.
type Schema struct {
	SourceDataset string
	SourceTable   string
	DestDataset   string
	DestTable     string
}

// Store is an analytical store that can run parameterized reads and bulk
// inserts.
type Store interface {
	// Driver names the backend ("bigquery", "postgres", "sqlite").
	Driver() string
	// QualifiedName returns dataset.table quoted for use in a query body.
	// Callers must validate both parts first.
	QualifiedName(dataset, table string) string
	// Placeholder returns the bind marker for the pos-th (1-based) parameter.
	Placeholder(name string, pos int) string
	// Query runs a read with bound parameters and returns all rows in order.
	Query(ctx context.Context, query string, params ...Param) ([]Row, error)
	// InsertRows submits rows in one call. A returned error means nothing
	// was written; rejected rows are reported individually otherwise.
	InsertRows(ctx context.Context, dataset, table string, columns []string, rows []Row) ([]RowError, error)
	// Migrate creates the tables in s if they do not exist.
	Migrate(ctx context.Context, s Schema) error
	Close() error
}

// ordered flattens rows into column order.
func ordered(columns []string, rows []Row) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(columns))
		for j, c := range columns {
			vals[j] = r[c]
		}
		out[i] = vals
	}
	return out
}
