package classifier

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
)

// Options selects the pipeline to open.
type Options struct {
	Task   string
	Model  string
	Device string
}

// Adapter opens classification sessions on a Loader.
type Adapter struct {
	loader Loader
	log    *zap.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(loader Loader, log *zap.Logger) *Adapter {
	return &Adapter{loader: loader, log: log}
}

// Open picks the device once and loads the model. The caller must Close the
// returned session.
func (a *Adapter) Open(ctx context.Context, opts Options) (*Session, error) {
	var accelerators []string
	if opts.Device != DeviceCPU {
		found, err := a.loader.Accelerators(ctx)
		if err != nil {
			a.log.Warn("device probe failed, using cpu", zap.Error(err))
		}
		accelerators = found
	}

	device, fellBack := SelectDevice(opts.Device, accelerators)
	if fellBack {
		a.log.Warn("requested device unavailable, falling back to cpu",
			zap.String("requested", opts.Device),
			zap.Strings("available", accelerators),
		)
	}

	start := time.Now()
	p, err := a.loader.Load(ctx, opts.Task, opts.Model, device)
	if err != nil {
		return nil, resilience.Wrap(resilience.KindClassification, eris.Wrapf(err, "classifier: open %s", opts.Model))
	}
	a.log.Info("model loaded",
		zap.String("task", opts.Task),
		zap.String("model", opts.Model),
		zap.String("device", p.Device()),
		zap.Duration("duration", time.Since(start)),
	)
	return &Session{predictor: p, model: opts.Model, log: a.log}, nil
}

// Session is an open model pipeline.
type Session struct {
	predictor Predictor
	model     string
	log       *zap.Logger
}

// Model returns the model identifier the session was opened with.
func (s *Session) Model() string { return s.model }

// Device returns the device the model runs on.
func (s *Session) Device() string { return s.predictor.Device() }

// Classify labels texts. Result i corresponds to texts[i].
func (s *Session) Classify(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	if len(texts) == 0 {
		return []model.ClassificationResult{}, nil
	}
	start := time.Now()
	results, err := s.predictor.Predict(ctx, texts)
	if err != nil {
		return nil, resilience.Wrap(resilience.KindClassification, eris.Wrapf(err, "classifier: classify %d texts", len(texts)))
	}
	if len(results) != len(texts) {
		return nil, resilience.Wrap(resilience.KindClassification,
			eris.Errorf("classifier: got %d results for %d texts", len(results), len(texts)))
	}
	for i, r := range results {
		if r.Score < 0 || r.Score > 1 {
			return nil, resilience.Wrap(resilience.KindClassification,
				eris.Errorf("classifier: score %v for text %d outside [0, 1]", r.Score, i))
		}
	}
	s.log.Info("classified texts",
		zap.Int("count", len(texts)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// Close releases the pipeline.
func (s *Session) Close(ctx context.Context) error {
	if err := s.predictor.Close(ctx); err != nil {
		return eris.Wrapf(err, "classifier: close %s", s.model)
	}
	return nil
}
