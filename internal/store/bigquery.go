package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryConfig configures the BigQuery client.
type BigQueryConfig struct {
	// Project is the billing project. Empty detects it from the credentials.
	Project         string
	Location        string
	CredentialsFile string
}

// rowIterator is satisfied by *bigquery.RowIterator.
type rowIterator interface {
	Next(dst any) error
}

// bqClient is the slice of the BigQuery API the store drives.
type bqClient interface {
	Project() string
	Read(ctx context.Context, query string, params []bigquery.QueryParameter) (rowIterator, error)
	Put(ctx context.Context, dataset, table string, savers []bigquery.ValueSaver) error
	TableExists(ctx context.Context, dataset, table string) (bool, error)
	CreateTable(ctx context.Context, dataset, table string, schema bigquery.Schema) error
	Close() error
}

// BigQueryStore implements Store on top of cloud.google.com/go/bigquery.
type BigQueryStore struct {
	client bqClient
}

// NewBigQuery creates a BigQuery client using Application Default Credentials
// or the configured credentials file.
func NewBigQuery(ctx context.Context, cfg BigQueryConfig) (*BigQueryStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	project := cfg.Project
	if project == "" {
		project = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: create client")
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}
	return &BigQueryStore{client: &gcpClient{c: client}}, nil
}

// Driver implements Store.
func (s *BigQueryStore) Driver() string { return "bigquery" }

// QualifiedName implements Store.
func (s *BigQueryStore) QualifiedName(dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.client.Project(), dataset, table)
}

// Placeholder implements Store.
func (s *BigQueryStore) Placeholder(name string, _ int) string {
	return "@" + name
}

// Query implements Store.
func (s *BigQueryStore) Query(ctx context.Context, query string, params ...Param) ([]Row, error) {
	qp := make([]bigquery.QueryParameter, len(params))
	for i, p := range params {
		qp[i] = bigquery.QueryParameter{Name: p.Name, Value: p.Value}
	}
	it, err := s.client.Read(ctx, query, qp)
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: run query")
	}
	return readRows(it)
}

func readRows(it rowIterator) ([]Row, error) {
	var out []Row
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "bigquery: read row")
		}
		row := make(Row, len(values))
		for k, v := range values {
			row[k] = v
		}
		out = append(out, row)
	}
}

// InsertRows implements Store using the streaming inserter. The first column
// is the row's insert ID so transport retries of this call are de-duplicated.
func (s *BigQueryStore) InsertRows(ctx context.Context, dataset, table string, columns []string, rows []Row) ([]RowError, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	savers := make([]bigquery.ValueSaver, len(rows))
	for i, r := range rows {
		savers[i] = newRowSaver(columns, r)
	}
	return splitPutError(s.client.Put(ctx, dataset, table, savers))
}

// splitPutError separates per-row rejections from a failed call.
func splitPutError(err error) ([]RowError, error) {
	if err == nil {
		return nil, nil
	}
	var multi bigquery.PutMultiError
	if !errors.As(err, &multi) {
		return nil, eris.Wrap(err, "bigquery: insert rows")
	}
	out := make([]RowError, 0, len(multi))
	for _, rowErr := range multi {
		out = append(out, RowError{Index: rowErr.RowIndex, Err: rowErr.Errors})
	}
	return out, nil
}

type rowSaver struct {
	values   map[string]bigquery.Value
	insertID string
}

func newRowSaver(columns []string, r Row) *rowSaver {
	rs := &rowSaver{values: make(map[string]bigquery.Value, len(columns))}
	for _, c := range columns {
		rs.values[c] = r[c]
	}
	if len(columns) > 0 && r[columns[0]] != nil {
		rs.insertID = fmt.Sprint(r[columns[0]])
	}
	return rs
}

// Save implements bigquery.ValueSaver.
func (rs *rowSaver) Save() (map[string]bigquery.Value, string, error) {
	return rs.values, rs.insertID, nil
}

// sentimentSchema mirrors the persisted result shape.
var sentimentSchema = bigquery.Schema{
	{Name: "sentiment_id", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "review_id", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "sentiment_label", Type: bigquery.StringFieldType, Required: true},
	{Name: "sentiment_score", Type: bigquery.FloatFieldType, Required: true},
	{Name: "model_name", Type: bigquery.StringFieldType, Required: true},
	{Name: "processed_at", Type: bigquery.StringFieldType, Required: true},
}

// Migrate implements Store. Only the destination table is created; the
// reviews table belongs to whoever loads it.
func (s *BigQueryStore) Migrate(ctx context.Context, sc Schema) error {
	exists, err := s.client.TableExists(ctx, sc.DestDataset, sc.DestTable)
	if err != nil {
		return eris.Wrapf(err, "bigquery: check table %s.%s", sc.DestDataset, sc.DestTable)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateTable(ctx, sc.DestDataset, sc.DestTable, sentimentSchema); err != nil {
		return eris.Wrapf(err, "bigquery: create table %s.%s", sc.DestDataset, sc.DestTable)
	}
	return nil
}

// Close implements Store.
func (s *BigQueryStore) Close() error {
	return s.client.Close()
}

// gcpClient adapts *bigquery.Client to bqClient.
type gcpClient struct {
	c *bigquery.Client
}

func (g *gcpClient) Project() string { return g.c.Project() }

func (g *gcpClient) Read(ctx context.Context, query string, params []bigquery.QueryParameter) (rowIterator, error) {
	q := g.c.Query(query)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (g *gcpClient) Put(ctx context.Context, dataset, table string, savers []bigquery.ValueSaver) error {
	return g.c.Dataset(dataset).Table(table).Inserter().Put(ctx, savers)
}

func (g *gcpClient) TableExists(ctx context.Context, dataset, table string) (bool, error) {
	_, err := g.c.Dataset(dataset).Table(table).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (g *gcpClient) CreateTable(ctx context.Context, dataset, table string, schema bigquery.Schema) error {
	return g.c.Dataset(dataset).Table(table).Create(ctx, &bigquery.TableMetadata{Schema: schema})
}

func (g *gcpClient) Close() error { return g.c.Close() }
