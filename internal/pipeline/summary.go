package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
)

// Summarize computes label counts and score statistics for a local run.
func Summarize(texts []string, results []model.ClassificationResult) (*model.SummaryStats, error) {
	if len(texts) != len(results) {
		return nil, resilience.Wrap(resilience.KindAlignment,
			eris.Errorf("pipeline: %d texts but %d classifications", len(texts), len(results)))
	}
	stats := &model.SummaryStats{Total: len(results), LabelCounts: make(map[string]int)}
	if len(results) == 0 {
		return stats, nil
	}

	var sum float64
	strongest := 0
	stats.MaxScore = results[0].Score
	stats.MinScore = results[0].Score
	for i, r := range results {
		stats.LabelCounts[r.Label]++
		sum += r.Score
		if r.Score > stats.MaxScore {
			stats.MaxScore = r.Score
			strongest = i
		}
		if r.Score < stats.MinScore {
			stats.MinScore = r.Score
		}
	}
	stats.AvgScore = sum / float64(len(results))
	stats.StrongestText = texts[strongest]
	return stats, nil
}
