package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/internal/store"
)

const defaultSQLitePath = "sentiment.db"

// initStore opens the configured warehouse. Construction failures are fetch
// failures: nothing can be read without a client.
func initStore(ctx context.Context) (store.Store, error) {
	w := cfg.Warehouse
	var (
		st  store.Store
		err error
	)
	switch w.Driver {
	case "bigquery":
		st, err = store.NewBigQuery(ctx, store.BigQueryConfig{
			Project:         w.Project,
			Location:        w.Location,
			CredentialsFile: w.CredentialsFile,
		})
	case "postgres":
		st, err = store.NewPostgres(ctx, w.DatabaseURL)
	case "sqlite":
		dsn := w.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err = store.NewSQLite(dsn)
	default:
		return nil, resilience.Wrap(resilience.KindConfig, eris.Errorf("unsupported warehouse driver: %s", w.Driver))
	}
	if err != nil {
		return nil, resilience.Wrap(resilience.KindFetch, err)
	}
	return st, nil
}
