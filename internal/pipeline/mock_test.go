package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/classifier"
	"github.com/sells-group/sentiment-cli/internal/config"
	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/store"
)

// fakeStore is an in-memory store.Store that records what it was asked.
type fakeStore struct {
	rows      []store.Row
	queryErr  error
	insertErr error
	rejects   map[int]error

	queries  []string
	params   [][]store.Param
	inserted []store.Row
	inserts  int
}

func (f *fakeStore) Driver() string { return "fake" }

func (f *fakeStore) QualifiedName(dataset, table string) string { return dataset + "." + table }

func (f *fakeStore) Placeholder(name string, _ int) string { return "@" + name }

func (f *fakeStore) Query(_ context.Context, query string, params ...store.Param) ([]store.Row, error) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeStore) InsertRows(_ context.Context, _, _ string, _ []string, rows []store.Row) ([]store.RowError, error) {
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	var failures []store.RowError
	for i, r := range rows {
		if err, ok := f.rejects[i]; ok {
			failures = append(failures, store.RowError{Index: i, Err: err})
			continue
		}
		f.inserted = append(f.inserted, r)
	}
	return failures, nil
}

func (f *fakeStore) Migrate(context.Context, store.Schema) error { return nil }

func (f *fakeStore) Close() error { return nil }

// textPredictor answers from a fixed table keyed by text.
type textPredictor struct {
	answers map[string]model.ClassificationResult
	closed  bool
	calls   int
}

func (p *textPredictor) Device() string { return "cpu" }

func (p *textPredictor) Predict(_ context.Context, texts []string) ([]model.ClassificationResult, error) {
	p.calls++
	out := make([]model.ClassificationResult, len(texts))
	for i, t := range texts {
		r, ok := p.answers[t]
		if !ok {
			r = model.ClassificationResult{Label: "NEUTRAL", Score: 0.5}
		}
		out[i] = r
	}
	return out, nil
}

func (p *textPredictor) Close(context.Context) error {
	p.closed = true
	return nil
}

type staticLoader struct {
	predictor *textPredictor
	loads     int
}

func (l *staticLoader) Accelerators(context.Context) ([]string, error) { return nil, nil }

func (l *staticLoader) Load(context.Context, string, string, string) (classifier.Predictor, error) {
	l.loads++
	return l.predictor, nil
}

func demoAnswers() map[string]model.ClassificationResult {
	return map[string]model.ClassificationResult{
		"great product":    {Label: "POSITIVE", Score: 0.95},
		"terrible service": {Label: "NEGATIVE", Score: 0.88},
	}
}

func newDemoAdapter(log *zap.Logger) (*classifier.Adapter, *staticLoader) {
	l := &staticLoader{predictor: &textPredictor{answers: demoAnswers()}}
	return classifier.NewAdapter(l, log), l
}

// newSQLiteDemo creates a migrated SQLite store seeded with the given reviews.
func newSQLiteDemo(t *testing.T, reviews map[int64]string) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx, store.Schema{
		SourceDataset: "distilbert_demo", SourceTable: "nlp_demo_reviews",
		DestDataset: "distilbert_demo", DestTable: "nlp_demo_sentiments",
	}))

	rows := make([]store.Row, 0, len(reviews))
	for id, text := range reviews {
		rows = append(rows, store.Row{model.ColReviewID: id, model.ColReviewText: text})
	}
	failures, err := st.InsertRows(ctx, "distilbert_demo", "nlp_demo_reviews",
		[]string{model.ColReviewID, model.ColReviewText}, rows)
	require.NoError(t, err)
	require.Empty(t, failures)
	return st
}

func demoConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Task:          "sentiment-analysis",
		Model:         "demo-model",
		Device:        "cpu",
		SourceDataset: "distilbert_demo",
		SourceTable:   "nlp_demo_reviews",
		DestDataset:   "distilbert_demo",
		DestTable:     "nlp_demo_sentiments",
		Limit:         2,
	}
}
