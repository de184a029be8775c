package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/promptcoach/internal/review"
)

// JSONWriter outputs reviews as indented JSON.
type JSONWriter struct{}

type resultDoc struct {
	*review.Result
	Insights review.Insights `json:"insights"`
}

func (j *JSONWriter) WriteResult(w io.Writer, res *review.Result) error {
	return writeJSON(w, resultDoc{Result: res, Insights: res.Insights()})
}

func (j *JSONWriter) WriteComparison(w io.Writer, cmp *review.Comparison) error {
	outcomes := make([]outcomeView, len(cmp.Outcomes))
	for i, o := range cmp.Outcomes {
		outcomes[i] = viewOf(o)
	}
	return writeJSON(w, struct {
		Outcomes       []outcomeView       `json:"outcomes"`
		AverageRatings review.Ratings      `json:"averageRatings"`
		Spread         review.Ratings      `json:"spread"`
		Consensus      []string            `json:"consensus"`
		Unique         map[string][]string `json:"unique"`
	}{outcomes, cmp.AverageRatings, cmp.Spread, cmp.Consensus, cmp.Unique})
}

func (j *JSONWriter) WriteBatch(w io.Writer, outcomes []review.Outcome) error {
	views := make([]outcomeView, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		views[i] = viewOf(o)
		if o.Err != nil {
			failed++
		}
	}
	return writeJSON(w, struct {
		Total   int           `json:"total"`
		Failed  int           `json:"failed"`
		Reviews []outcomeView `json:"reviews"`
	}{len(outcomes), failed, views})
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
