package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/internal/store"
)

// Write inserts records into dataset.table in one call. Rejected rows are
// logged and reported; only a failed call returns an error.
func Write(ctx context.Context, st store.Store, dataset, table string, records []model.SentimentRecord, log *zap.Logger) (*model.WriteReport, error) {
	if err := validateTable(dataset, table); err != nil {
		return nil, err
	}
	report := &model.WriteReport{Table: dataset + "." + table, Attempted: len(records)}
	if len(records) == 0 {
		return report, nil
	}

	rows := make([]store.Row, len(records))
	for i, rec := range records {
		vals := rec.Values()
		row := make(store.Row, len(model.SentimentColumns))
		for j, col := range model.SentimentColumns {
			row[col] = vals[j]
		}
		rows[i] = row
	}

	failures, err := st.InsertRows(ctx, dataset, table, model.SentimentColumns, rows)
	if err != nil {
		return nil, resilience.Wrap(resilience.KindWrite,
			eris.Wrapf(err, "pipeline: write %d rows to %s", len(records), report.Table))
	}

	for _, f := range failures {
		var reviewID int64
		if f.Index >= 0 && f.Index < len(records) {
			reviewID = records[f.Index].ReviewID
		}
		reason := "rejected"
		if f.Err != nil {
			reason = f.Err.Error()
		}
		report.Failures = append(report.Failures, model.RowError{Index: f.Index, ReviewID: reviewID, Reason: reason})
		log.Warn("pipeline: row rejected",
			zap.Int("index", f.Index),
			zap.Int64("review_id", reviewID),
			zap.String("reason", reason),
		)
	}
	report.Inserted = report.Attempted - len(report.Failures)
	return report, nil
}
