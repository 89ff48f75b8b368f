package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/sentiment-cli/internal/config"
	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/internal/store"
	"github.com/sells-group/sentiment-cli/pkg/inference"
)

// newInferenceServer fakes a model server that knows two demo sentences.
func newInferenceServer(t *testing.T) *httptest.Server {
	t.Helper()
	answers := map[string]inference.Prediction{
		"great product":    {Label: "POSITIVE", Score: 0.95},
		"terrible service": {Label: "NEGATIVE", Score: 0.88},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(inference.HealthResponse{Status: "ok"})
	})
	mux.HandleFunc("POST /v1/pipelines", func(w http.ResponseWriter, r *http.Request) {
		var req inference.LoadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(inference.LoadResponse{PipelineID: "p-1", Device: req.Device, Model: req.Model})
	})
	mux.HandleFunc("POST /v1/pipelines/p-1/predict", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := inference.PredictResponse{}
		for _, in := range req.Inputs {
			p, ok := answers[in]
			if !ok {
				p = inference.Prediction{Label: "NEUTRAL", Score: 0.5}
			}
			resp.Predictions = append(resp.Predictions, []inference.Prediction{p})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("DELETE /v1/pipelines/p-1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupRun points the package globals at a SQLite warehouse and a fake
// inference server.
func setupRun(t *testing.T, log *zap.Logger) string {
	t.Helper()
	srv := newInferenceServer(t)
	dsn := filepath.Join(t.TempDir(), "sentiment.db")

	cfg = &config.Config{
		Task:        "sentiment-analysis",
		Model:       "demo-model",
		Device:      "cpu",
		SampleTexts: []string{"great product", "terrible service"},
		Warehouse: config.WarehouseConfig{
			Driver:         "sqlite",
			DatabaseURL:    dsn,
			Dataset:        "distilbert_demo",
			ReviewsTable:   "nlp_demo_reviews",
			SentimentTable: "nlp_demo_sentiments",
			Limit:          2,
		},
		Inference: config.InferenceConfig{BaseURL: srv.URL, TimeoutSecs: 5, MaxAttempts: 1},
		IDs:       config.IDConfig{Strategy: "uuid"},
		Log:       config.LogConfig{Level: "info", Format: "json"},
	}
	logger = log
	modeFlag, outputFlag, runTimeout = "bigquery", "text", 0
	t.Cleanup(func() {
		cfg, logger = nil, zap.NewNop()
		modeFlag, outputFlag = "bigquery", "text"
	})
	return dsn
}

func seedReviews(t *testing.T, dsn string) {
	t.Helper()
	st, err := store.NewSQLite(dsn)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx, store.Schema{
		SourceDataset: "distilbert_demo", SourceTable: "nlp_demo_reviews",
		DestDataset: "distilbert_demo", DestTable: "nlp_demo_sentiments",
	}))
	_, err = st.InsertRows(ctx, "distilbert_demo", "nlp_demo_reviews",
		[]string{model.ColReviewID, model.ColReviewText},
		[]store.Row{
			{model.ColReviewID: int64(1), model.ColReviewText: "great product"},
			{model.ColReviewID: int64(2), model.ColReviewText: "terrible service"},
		})
	require.NoError(t, err)
}

func execute(t *testing.T, c *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	err := runPipeline(c, nil)
	return out.String(), err
}

func TestRunPipeline_RemoteJSON(t *testing.T) {
	dsn := setupRun(t, zap.NewNop())
	seedReviews(t, dsn)
	outputFlag = "json"

	out, err := execute(t, &cobra.Command{})
	require.NoError(t, err)

	var res model.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "demo-model", res.Model)
	assert.Equal(t, 2, res.Fetched)
	require.NotNil(t, res.Report)
	assert.Equal(t, 2, res.Report.Inserted)
	assert.Empty(t, res.Report.Failures)

	st, err := store.NewSQLite(dsn)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	rows, err := st.Query(context.Background(),
		`SELECT review_id, sentiment_label FROM "nlp_demo_sentiments" ORDER BY review_id`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "POSITIVE", rows[0]["sentiment_label"])
	assert.Equal(t, "NEGATIVE", rows[1]["sentiment_label"])
}

func TestRunPipeline_RemoteText(t *testing.T) {
	dsn := setupRun(t, zap.NewNop())
	seedReviews(t, dsn)

	out, err := execute(t, &cobra.Command{})
	require.NoError(t, err)
	assert.Contains(t, out, "Fetched:    2")
	assert.Contains(t, out, "Inserted:   2/2")
}

func TestRunPipeline_Local(t *testing.T) {
	setupRun(t, zap.NewNop())
	modeFlag = "local"

	out, err := execute(t, &cobra.Command{})
	require.NoError(t, err)
	assert.Contains(t, out, "1. great product")
	assert.Contains(t, out, "Label: NEGATIVE, Score: 0.8800")
	assert.Contains(t, out, "Label counts:")
	assert.Contains(t, out, `Strongest text: "great product"`)
	assert.True(t, strings.Index(out, "2. terrible service") < strings.Index(out, "Summary"))
}

func TestRunPipeline_LocalJSON(t *testing.T) {
	setupRun(t, zap.NewNop())
	modeFlag, outputFlag = "local", "json"

	out, err := execute(t, &cobra.Command{})
	require.NoError(t, err)

	var res model.LocalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, map[string]int{"POSITIVE": 1, "NEGATIVE": 1}, res.Summary.LabelCounts)
	assert.InDelta(t, 0.915, res.Summary.AvgScore, 1e-9)
}

func TestRunPipeline_UnknownModeFallsBack(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dsn := setupRun(t, zap.New(core))
	seedReviews(t, dsn)
	modeFlag = "streaming"

	out, err := execute(t, &cobra.Command{})
	require.NoError(t, err)
	assert.Contains(t, out, "Fetched:    2")
	assert.Equal(t, 1, logs.FilterMessage("unrecognized mode, using default").Len())
}

func TestRunPipeline_ConfigError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	setupRun(t, zap.New(core))
	cfg.Warehouse.Limit = 0

	_, err := execute(t, &cobra.Command{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrConfig))

	entries := logs.FilterMessage("run failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "config_error", entries[0].ContextMap()["kind"])
}

func TestRunPipeline_InvalidIdentifier(t *testing.T) {
	dsn := setupRun(t, zap.NewNop())
	seedReviews(t, dsn)
	cfg.Warehouse.ReviewsTable = "reviews;DROP"

	_, err := execute(t, &cobra.Command{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrInvalidIdentifier))
}

func TestRunPipeline_MissingSourceTable(t *testing.T) {
	setupRun(t, zap.NewNop())

	_, err := execute(t, &cobra.Command{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrFetchFailed))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	setupRun(t, zap.NewNop())
	cfg.Warehouse.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrConfig))
}
