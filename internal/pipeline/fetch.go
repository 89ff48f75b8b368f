package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/internal/store"
)

var identifierRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateIdentifier rejects dataset and table names that cannot be safely
// spliced into a query.
func ValidateIdentifier(what, name string) error {
	if !identifierRE.MatchString(name) {
		return resilience.Wrap(resilience.KindInvalidIdentifier,
			eris.Errorf("pipeline: %s %q must match %s", what, name, identifierRE.String()))
	}
	return nil
}

func validateTable(dataset, table string) error {
	if err := ValidateIdentifier("dataset", dataset); err != nil {
		return err
	}
	return ValidateIdentifier("table", table)
}

// Fetch reads at most limit reviews from dataset.table with a single bound
// query. Texts are NFC-normalized and trimmed; rows with no text are skipped.
func Fetch(ctx context.Context, st store.Store, dataset, table string, limit int, log *zap.Logger) ([]model.SourceRecord, error) {
	if err := validateTable(dataset, table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, resilience.Wrap(resilience.KindConfig, eris.Errorf("pipeline: limit must be positive, got %d", limit))
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s LIMIT %s",
		model.ColReviewID, model.ColReviewText,
		st.QualifiedName(dataset, table), st.Placeholder("limit", 1))

	rows, err := st.Query(ctx, query, store.Param{Name: "limit", Value: limit})
	if err != nil {
		return nil, resilience.Wrap(resilience.KindFetch, eris.Wrapf(err, "pipeline: fetch %s.%s", dataset, table))
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	records := make([]model.SourceRecord, 0, len(rows))
	for i, row := range rows {
		id, err := store.Int64(row[model.ColReviewID])
		if err != nil {
			return nil, resilience.Wrap(resilience.KindFetch, eris.Wrapf(err, "pipeline: row %d review_id", i))
		}
		raw, _ := store.String(row[model.ColReviewText])
		text := normalizeText(raw)
		if text == "" {
			log.Warn("pipeline: skipping review without text", zap.Int64("review_id", id))
			continue
		}
		records = append(records, model.SourceRecord{ID: id, Text: text})
	}
	return records, nil
}

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
