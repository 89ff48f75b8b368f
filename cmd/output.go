package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func parseOutput(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case outputText, "":
		return outputText, nil
	case outputJSON:
		return outputJSON, nil
	default:
		return "", resilience.Wrap(resilience.KindConfig, eris.Errorf("output: %q is not one of text, json", s))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printLocal lists every classified text followed by summary statistics.
func printLocal(w io.Writer, format string, res *model.LocalResult) error {
	if format == outputJSON {
		return writeJSON(w, res)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Model: %s (device: %s)\n\n", res.Model, res.Device)
	for i, text := range res.Texts {
		r := res.Results[i]
		fmt.Fprintf(&b, "%d. %s\n   Label: %s, Score: %.4f\n", i+1, text, r.Label, r.Score)
	}

	s := res.Summary
	b.WriteString("\nSummary\n")
	fmt.Fprintf(&b, "  Total texts:    %d\n", s.Total)
	b.WriteString("  Label counts:\n")
	labels := make([]string, 0, len(s.LabelCounts))
	for l := range s.LabelCounts {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	for _, l := range labels {
		fmt.Fprintf(&b, "    %-10s %d\n", l, s.LabelCounts[l])
	}
	fmt.Fprintf(&b, "  Average score:  %.4f\n", s.AvgScore)
	fmt.Fprintf(&b, "  Max score:      %.4f\n", s.MaxScore)
	fmt.Fprintf(&b, "  Min score:      %.4f\n", s.MinScore)
	fmt.Fprintf(&b, "  Strongest text: %q\n", s.StrongestText)

	_, err := io.WriteString(w, b.String())
	return err
}

// printRun reports the counts of a remote run.
func printRun(w io.Writer, format string, res *model.RunResult) error {
	if format == outputJSON {
		return writeJSON(w, res)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Model:      %s (device: %s)\n", res.Model, res.Device)
	fmt.Fprintf(&b, "Fetched:    %d\n", res.Fetched)
	fmt.Fprintf(&b, "Classified: %d\n", res.Classified)
	if r := res.Report; r != nil {
		fmt.Fprintf(&b, "Table:      %s\n", r.Table)
		fmt.Fprintf(&b, "Inserted:   %d/%d\n", r.Inserted, r.Attempted)
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  rejected review %d (row %d): %s\n", f.ReviewID, f.Index, f.Reason)
		}
	}
	fmt.Fprintf(&b, "Duration:   %dms\n", res.Duration)

	_, err := io.WriteString(w, b.String())
	return err
}
