// Package pipeline runs one bounded batch of sentiment classification:
// fetch reviews, classify them, assemble result rows and write them back.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/classifier"
	"github.com/sells-group/sentiment-cli/internal/config"
	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/store"
)

// Pipeline wires the stages of a run together.
type Pipeline struct {
	store   store.Store
	adapter *classifier.Adapter
	ids     IDGenerator
	now     func() time.Time
	log     *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock used for processed_at.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline. st may be nil when only RunLocal is used.
func New(st store.Store, adapter *classifier.Adapter, ids IDGenerator, log *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   st,
		adapter: adapter,
		ids:     ids,
		now:     time.Now,
		log:     log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the remote pipeline. A partial write is reported in the result
// and is not an error.
func (p *Pipeline) Run(ctx context.Context, cfg config.PipelineConfig) (*model.RunResult, error) {
	start := time.Now()
	log := p.log.With(
		zap.String("model", cfg.Model),
		zap.String("source", cfg.SourceDataset+"."+cfg.SourceTable),
		zap.String("dest", cfg.DestDataset+"."+cfg.DestTable),
	)
	log.Info("pipeline: starting run", zap.String("driver", p.store.Driver()), zap.Int("limit", cfg.Limit))

	// Bad destination names should fail before any work is done.
	if err := validateTable(cfg.DestDataset, cfg.DestTable); err != nil {
		return nil, err
	}

	result := &model.RunResult{Model: cfg.Model}

	var records []model.SourceRecord
	err := stage(log, "fetch", func() (err error) {
		records, err = Fetch(ctx, p.store, cfg.SourceDataset, cfg.SourceTable, cfg.Limit, log)
		return err
	}, func() []zap.Field { return []zap.Field{zap.Int("rows", len(records))} })
	if err != nil {
		return nil, err
	}
	result.Fetched = len(records)

	if len(records) == 0 {
		log.Info("pipeline: no reviews to process")
		result.Report = &model.WriteReport{Table: cfg.DestDataset + "." + cfg.DestTable}
		result.Duration = time.Since(start).Milliseconds()
		return result, nil
	}

	session, err := p.adapter.Open(ctx, classifier.Options{Task: cfg.Task, Model: cfg.Model, Device: cfg.Device})
	if err != nil {
		return nil, err
	}
	defer p.closeSession(session)
	result.Device = session.Device()

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}

	var classified []model.ClassificationResult
	err = stage(log, "classify", func() (err error) {
		classified, err = session.Classify(ctx, texts)
		return err
	}, func() []zap.Field { return []zap.Field{zap.Int("texts", len(texts))} })
	if err != nil {
		return nil, err
	}
	result.Classified = len(classified)

	assembled, err := Assemble(records, classified, session.Model(), p.ids, p.now)
	if err != nil {
		return nil, err
	}
	for _, rec := range assembled {
		log.Info("pipeline: processed review",
			zap.Int64("review_id", rec.ReviewID),
			zap.String("label", rec.SentimentLabel),
			zap.Float64("score", rec.SentimentScore),
		)
	}

	var report *model.WriteReport
	err = stage(log, "write", func() (err error) {
		report, err = Write(ctx, p.store, cfg.DestDataset, cfg.DestTable, assembled, log)
		return err
	}, func() []zap.Field {
		return []zap.Field{zap.Int("inserted", report.Inserted), zap.Int("failed", len(report.Failures))}
	})
	if err != nil {
		return nil, err
	}
	if report.Partial() {
		log.Warn("pipeline: partial write", zap.Int("failed", len(report.Failures)), zap.Int("attempted", report.Attempted))
	}
	result.Report = report
	result.Duration = time.Since(start).Milliseconds()

	log.Info("pipeline: run complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", report.Inserted),
		zap.Int("failed", len(report.Failures)),
		zap.Int64("duration_ms", result.Duration),
	)
	return result, nil
}

// RunLocal classifies the configured sample texts without touching a store.
func (p *Pipeline) RunLocal(ctx context.Context, cfg config.PipelineConfig) (*model.LocalResult, error) {
	log := p.log.With(zap.String("model", cfg.Model))
	log.Info("pipeline: starting local run", zap.Int("texts", len(cfg.SampleTexts)))

	texts := make([]string, 0, len(cfg.SampleTexts))
	for _, t := range cfg.SampleTexts {
		if n := normalizeText(t); n != "" {
			texts = append(texts, n)
		}
	}

	session, err := p.adapter.Open(ctx, classifier.Options{Task: cfg.Task, Model: cfg.Model, Device: cfg.Device})
	if err != nil {
		return nil, err
	}
	defer p.closeSession(session)

	results, err := session.Classify(ctx, texts)
	if err != nil {
		return nil, err
	}
	summary, err := Summarize(texts, results)
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: local run complete",
		zap.Int("texts", summary.Total),
		zap.Float64("avg_score", summary.AvgScore),
	)
	return &model.LocalResult{
		Model:   session.Model(),
		Device:  session.Device(),
		Texts:   texts,
		Results: results,
		Summary: summary,
	}, nil
}

// closeSession releases the model even when ctx is already cancelled.
func (p *Pipeline) closeSession(s *classifier.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		p.log.Warn("pipeline: failed to release model", zap.Error(err))
	}
}

// stage runs fn and logs its outcome and duration. fields is only evaluated
// on success.
func stage(log *zap.Logger, name string, fn func() error, fields func() []zap.Field) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	log.Info("pipeline: stage complete",
		append([]zap.Field{zap.String("stage", name), zap.Int64("duration_ms", duration)}, fields()...)...,
	)
	return nil
}
