package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
)

// Assemble zips records with their classifications by position. A length
// mismatch is an alignment error; nothing is truncated.
func Assemble(records []model.SourceRecord, results []model.ClassificationResult, modelName string, ids IDGenerator, now func() time.Time) ([]model.SentimentRecord, error) {
	if len(records) != len(results) {
		return nil, resilience.Wrap(resilience.KindAlignment,
			eris.Errorf("pipeline: %d records but %d classifications", len(records), len(results)))
	}

	out := make([]model.SentimentRecord, len(records))
	for i, rec := range records {
		id, err := ids.Next()
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: sentiment id for review %d", rec.ID)
		}
		out[i] = model.SentimentRecord{
			SentimentID:    id,
			ReviewID:       rec.ID,
			SentimentLabel: results[i].Label,
			SentimentScore: results[i].Score,
			ModelName:      modelName,
			ProcessedAt:    now().UTC(),
		}
	}
	return out, nil
}
