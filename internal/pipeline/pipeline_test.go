package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/internal/store"
)

func TestRun_DemoScenario(t *testing.T) {
	st := newSQLiteDemo(t, map[int64]string{1: "great product", 2: "terrible service"})
	adapter, loader := newDemoAdapter(zap.NewNop())
	p := New(st, adapter, NewUUIDGenerator(), zap.NewNop(), WithClock(fixedNow))

	result, err := p.Run(context.Background(), demoConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, "cpu", result.Device)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Complete())
	assert.Equal(t, 2, result.Report.Inserted)
	assert.True(t, loader.predictor.closed)

	rows, err := st.Query(context.Background(),
		`SELECT review_id, sentiment_label, sentiment_score, model_name, processed_at FROM "nlp_demo_sentiments" ORDER BY review_id`)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0]["review_id"])
	assert.Equal(t, "POSITIVE", rows[0]["sentiment_label"])
	assert.InDelta(t, 0.95, rows[0]["sentiment_score"], 1e-9)
	assert.Equal(t, int64(2), rows[1]["review_id"])
	assert.Equal(t, "NEGATIVE", rows[1]["sentiment_label"])
	assert.InDelta(t, 0.88, rows[1]["sentiment_score"], 1e-9)
	assert.Equal(t, "demo-model", rows[1]["model_name"])
	assert.Equal(t, "2024-05-01T17:30:00Z", rows[0]["processed_at"])
}

func TestRun_TwoRunsDisjointIDs(t *testing.T) {
	st := newSQLiteDemo(t, map[int64]string{1: "great product", 2: "terrible service"})
	adapter, _ := newDemoAdapter(zap.NewNop())

	for range 2 {
		p := New(st, adapter, NewUUIDGenerator(), zap.NewNop())
		_, err := p.Run(context.Background(), demoConfig())
		require.NoError(t, err)
	}

	rows, err := st.Query(context.Background(), `SELECT sentiment_id, review_id FROM "nlp_demo_sentiments"`)
	require.NoError(t, err)
	require.Len(t, rows, 4, "both runs insert; nothing deduplicates across runs")

	seen := make(map[int64]bool)
	for _, r := range rows {
		id, err := store.Int64(r["sentiment_id"])
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRun_PartialFailureCompletes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	st := &fakeStore{
		rows: []store.Row{
			{"review_id": int64(1), "review_text": "great product"},
			{"review_id": int64(2), "review_text": "terrible service"},
		},
		rejects: map[int]error{1: errors.New("invalid sentiment_score")},
	}
	adapter, _ := newDemoAdapter(log)
	p := New(st, adapter, NewUUIDGenerator(), log)

	result, err := p.Run(context.Background(), demoConfig())
	require.NoError(t, err)
	assert.True(t, result.Report.Partial())
	require.Len(t, result.Report.Failures, 1)
	assert.Equal(t, int64(2), result.Report.Failures[0].ReviewID)
	assert.Equal(t, 1, result.Report.Inserted)

	rejected := logs.FilterMessage("pipeline: row rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(2), rejected[0].ContextMap()["review_id"])
	assert.Equal(t, 2, logs.FilterMessage("pipeline: processed review").Len())
	assert.Equal(t, 1, logs.FilterMessage("pipeline: run complete").Len())
}

func TestRun_NoRows(t *testing.T) {
	st := &fakeStore{}
	adapter, loader := newDemoAdapter(zap.NewNop())
	p := New(st, adapter, NewUUIDGenerator(), zap.NewNop())

	result, err := p.Run(context.Background(), demoConfig())
	require.NoError(t, err)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, loader.loads)
	assert.Zero(t, st.inserts)
}

func TestRun_InvalidDestination(t *testing.T) {
	st := &fakeStore{}
	adapter, _ := newDemoAdapter(zap.NewNop())
	p := New(st, adapter, NewUUIDGenerator(), zap.NewNop())

	cfg := demoConfig()
	cfg.DestTable = "reviews;DROP"
	_, err := p.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrInvalidIdentifier))
	assert.Empty(t, st.queries)
}

func TestRun_FetchFailure(t *testing.T) {
	st := &fakeStore{queryErr: errors.New("access denied")}
	adapter, loader := newDemoAdapter(zap.NewNop())
	p := New(st, adapter, NewUUIDGenerator(), zap.NewNop())

	_, err := p.Run(context.Background(), demoConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrFetchFailed))
	assert.Zero(t, loader.loads)
}

func TestRun_WriteFailureReleasesModel(t *testing.T) {
	st := &fakeStore{
		rows:      []store.Row{{"review_id": int64(1), "review_text": "great product"}},
		insertErr: errors.New("table not found"),
	}
	adapter, loader := newDemoAdapter(zap.NewNop())
	p := New(st, adapter, NewUUIDGenerator(), zap.NewNop())

	_, err := p.Run(context.Background(), demoConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrWriteFailed))
	assert.True(t, loader.predictor.closed)
}

func TestRunLocal(t *testing.T) {
	adapter, loader := newDemoAdapter(zap.NewNop())
	p := New(nil, adapter, NewUUIDGenerator(), zap.NewNop())

	cfg := demoConfig()
	cfg.SampleTexts = []string{"great product", "  terrible service  ", "great product"}
	result, err := p.RunLocal(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"great product", "terrible service", "great product"}, result.Texts)
	require.Len(t, result.Results, 3)
	assert.Equal(t, map[string]int{"POSITIVE": 2, "NEGATIVE": 1}, result.Summary.LabelCounts)
	assert.Equal(t, "great product", result.Summary.StrongestText)
	assert.InDelta(t, (0.95+0.88+0.95)/3, result.Summary.AvgScore, 1e-9)
	assert.Equal(t, "cpu", result.Device)
	assert.True(t, loader.predictor.closed)
}

func TestStage_LogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	require.NoError(t, stage(log, "fetch", func() error { return nil },
		func() []zap.Field { return []zap.Field{zap.Int("rows", 3)} }))
	err := stage(log, "write", func() error { return errors.New("boom") },
		func() []zap.Field { t.Fatal("fields evaluated on failure"); return nil })
	require.Error(t, err)

	complete := logs.FilterMessage("pipeline: stage complete").All()
	require.Len(t, complete, 1)
	assert.Equal(t, "fetch", complete[0].ContextMap()["stage"])
	assert.Equal(t, int64(3), complete[0].ContextMap()["rows"])
	assert.Equal(t, 1, logs.FilterMessage("pipeline: stage failed").Len())
}
