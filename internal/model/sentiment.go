// Package model defines the records that flow through the sentiment pipeline.
package model

import "time"

// Column names of the source reviews table.
const (
	ColReviewID   = "review_id"
	ColReviewText = "review_text"
)

// Column names of the destination sentiments table, in insert order.
const (
	ColSentimentID    = "sentiment_id"
	ColSentimentLabel = "sentiment_label"
	ColSentimentScore = "sentiment_score"
	ColModelName      = "model_name"
	ColProcessedAt    = "processed_at"
)

// SentimentColumns lists the destination columns in insert order.
var SentimentColumns = []string{
	ColSentimentID,
	ColReviewID,
	ColSentimentLabel,
	ColSentimentScore,
	ColModelName,
	ColProcessedAt,
}

// SourceRecord is a review read from the source table.
type SourceRecord struct {
	ID   int64  `json:"review_id"`
	Text string `json:"review_text"`
}

// ClassificationResult is the model's verdict for a single text.
type ClassificationResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SentimentRecord is the persisted result for one review.
type SentimentRecord struct {
	SentimentID    int64     `json:"sentiment_id"`
	ReviewID       int64     `json:"review_id"`
	SentimentLabel string    `json:"sentiment_label"`
	SentimentScore float64   `json:"sentiment_score"`
	ModelName      string    `json:"model_name"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// ProcessedAtString formats ProcessedAt the way it is stored: ISO-8601 in UTC.
func (r SentimentRecord) ProcessedAtString() string {
	return r.ProcessedAt.UTC().Format(time.RFC3339Nano)
}

// Values returns the record's column values in SentimentColumns order.
func (r SentimentRecord) Values() []any {
	return []any{
		r.SentimentID,
		r.ReviewID,
		r.SentimentLabel,
		r.SentimentScore,
		r.ModelName,
		r.ProcessedAtString(),
	}
}

// RowError describes one row the destination store rejected.
type RowError struct {
	Index    int    `json:"index"`
	ReviewID int64  `json:"review_id"`
	Reason   string `json:"reason"`
}

// WriteReport is the outcome of a bulk insert that did not fail outright.
type WriteReport struct {
	Table     string     `json:"table"`
	Attempted int        `json:"attempted"`
	Inserted  int        `json:"inserted"`
	Failures  []RowError `json:"failures,omitempty"`
}

// Complete reports whether every row was accepted.
func (r *WriteReport) Complete() bool {
	return len(r.Failures) == 0
}

// Partial reports whether the store rejected some but not necessarily all rows.
func (r *WriteReport) Partial() bool {
	return len(r.Failures) > 0
}

// SummaryStats describes a batch of classifications.
type SummaryStats struct {
	Total         int            `json:"total"`
	LabelCounts   map[string]int `json:"label_counts"`
	AvgScore      float64        `json:"avg_score"`
	MaxScore      float64        `json:"max_score"`
	MinScore      float64        `json:"min_score"`
	StrongestText string         `json:"strongest_text"`
}

// RunResult summarizes a remote pipeline run.
type RunResult struct {
	Model      string       `json:"model"`
	Device     string       `json:"device"`
	Fetched    int          `json:"fetched"`
	Classified int          `json:"classified"`
	Report     *WriteReport `json:"report"`
	Duration   int64        `json:"duration_ms"`
}

// LocalResult is the output of the in-memory demo run.
type LocalResult struct {
	Model   string                 `json:"model"`
	Device  string                 `json:"device"`
	Texts   []string               `json:"texts"`
	Results []ClassificationResult `json:"results"`
	Summary *SummaryStats          `json:"summary"`
}
