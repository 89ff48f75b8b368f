package classifier

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/pkg/inference"
)

// RemoteLoader loads pipelines on an inference backend.
type RemoteLoader struct {
	client inference.Client
}

// NewRemoteLoader creates a Loader backed by client.
func NewRemoteLoader(client inference.Client) *RemoteLoader {
	return &RemoteLoader{client: client}
}

// Accelerators implements Loader using the backend health probe.
func (l *RemoteLoader) Accelerators(ctx context.Context) ([]string, error) {
	h, err := l.client.Health(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "classifier: health probe")
	}
	return h.Accelerators, nil
}

// Load implements Loader.
func (l *RemoteLoader) Load(ctx context.Context, task, modelName, device string) (Predictor, error) {
	resp, err := l.client.LoadPipeline(ctx, inference.LoadRequest{Task: task, Model: modelName, Device: device})
	if err != nil {
		return nil, eris.Wrapf(err, "classifier: load %s", modelName)
	}
	dev := resp.Device
	if dev == "" {
		dev = device
	}
	return &remotePredictor{client: l.client, id: resp.PipelineID, device: dev}, nil
}

type remotePredictor struct {
	client inference.Client
	id     string
	device string
}

func (p *remotePredictor) Device() string { return p.device }

func (p *remotePredictor) Predict(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	resp, err := p.client.Predict(ctx, p.id, texts)
	if err != nil {
		return nil, err
	}
	out := make([]model.ClassificationResult, len(resp.Predictions))
	for i, scores := range resp.Predictions {
		best, ok := topLabel(scores)
		if !ok {
			return nil, eris.Errorf("classifier: no scores for input %d", i)
		}
		out[i] = best
	}
	return out, nil
}

func (p *remotePredictor) Close(ctx context.Context) error {
	return p.client.UnloadPipeline(ctx, p.id)
}

// topLabel picks the highest score; ties keep the first listed.
func topLabel(scores []inference.Prediction) (model.ClassificationResult, bool) {
	if len(scores) == 0 {
		return model.ClassificationResult{}, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return model.ClassificationResult{Label: best.Label, Score: best.Score}, true
}
