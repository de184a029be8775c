package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/promptcoach/internal/review"
)

const (
	ruleWidth = 60
	wrapWidth = 70
	barWidth  = 10
)

// TextWriter outputs a human-readable terminal report.
type TextWriter struct{}

func (t *TextWriter) WriteResult(w io.Writer, res *review.Result) error {
	ew := &errWriter{w: w}
	writeTextResult(ew, res)
	return ew.err
}

func writeTextResult(ew *errWriter, res *review.Result) {
	ew.printf("Prompt review: %s\n", personaTitle(res))
	if res.AIUsed {
		ew.printf("Provider: %s (%s)", res.Provider, res.Model)
		if res.Cached {
			ew.printf(" [cached]")
		}
		ew.println("")
	} else {
		ew.println("Fallback review (no live AI call)")
		if res.Error != "" {
			ew.printf("Reason: %s\n", res.Error)
		}
	}
	ew.println(strings.Repeat("─", ruleWidth))

	ew.println("Ratings")
	for _, d := range review.Dimensions {
		v := res.Ratings.Get(d)
		ew.printf("  %-12s %s %4.1f\n", d, ratingBar(v), v)
	}
	ins := res.Insights()
	ew.printf("  average %.1f | strongest %s (%.1f) | weakest %s (%.1f)\n",
		ins.AverageRating, ins.StrongestDimension, ins.StrongestRating, ins.WeakestDimension, ins.WeakestRating)

	if res.SuggestedPrompt != "" {
		ew.println("\nSuggested prompt:")
		for _, line := range strings.Split(res.SuggestedPrompt, "\n") {
			ew.printf("    %s\n", line)
		}
	}

	if len(res.Questions) > 0 {
		ew.println("\nQuestions to consider:")
		for i, q := range res.Questions {
			writeWrappedItem(ew, fmt.Sprintf("  %d. ", i+1), q)
		}
	}

	if len(res.Refinements) > 0 {
		ew.println("\nRefinements:")
		for _, r := range res.Refinements {
			writeWrappedItem(ew, "  - ", r)
		}
	}

	if res.Feedback != "" {
		ew.println("\nFeedback:")
		for _, line := range wrapText(res.Feedback, wrapWidth) {
			ew.printf("    %s\n", line)
		}
	}

	if len(res.Issues) > 0 {
		ew.println("\nResponse notes:")
		for _, issue := range res.Issues {
			ew.printf("  * %s\n", issue)
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", ruleWidth))
	if res.AIUsed {
		est := ""
		if res.Usage.Estimated {
			est = " (estimated)"
		}
		ew.printf("Tokens: %d in / %d out%s | cost $%.4f | attempts %d\n",
			res.Usage.InputTokens, res.Usage.OutputTokens, est, res.Usage.EstimatedCost, res.Attempts)
	}
	ew.printf("Completed in %dms (LLM: %dms)\n", res.Timing.TotalMs, res.Timing.LLMMs)
}

func (t *TextWriter) WriteComparison(w io.Writer, cmp *review.Comparison) error {
	ew := &errWriter{w: w}

	ew.printf("Prompt comparison: %d reviews\n", len(cmp.Outcomes))
	ew.println(strings.Repeat("─", ruleWidth))

	ew.printf("%-24s", "")
	for _, d := range review.Dimensions {
		ew.printf(" %6.6s", d)
	}
	ew.printf(" %6s\n", "avg")
	for i, o := range cmp.Outcomes {
		label := truncate(outcomeLabel(i, o), 24)
		if o.Err != nil {
			ew.printf("%-24s error: %s\n", label, o.ErrorText())
			continue
		}
		ew.printf("%-24s", label)
		for _, d := range review.Dimensions {
			ew.printf(" %6.1f", o.Result.Ratings.Get(d))
		}
		ew.printf(" %6.1f\n", o.Result.Ratings.Average())
	}
	ew.printf("%-24s", "average")
	for _, d := range review.Dimensions {
		ew.printf(" %6.1f", cmp.AverageRatings.Get(d))
	}
	ew.printf(" %6.1f\n", cmp.AverageRatings.Average())
	ew.printf("%-24s", "spread")
	for _, d := range review.Dimensions {
		ew.printf(" %6.1f", cmp.Spread.Get(d))
	}
	ew.println("")

	if len(cmp.Consensus) > 0 {
		ew.println("\nAgreed refinements:")
		for _, r := range cmp.Consensus {
			writeWrappedItem(ew, "  - ", r)
		}
	}
	for i, o := range cmp.Outcomes {
		label := outcomeLabel(i, o)
		unique := cmp.Unique[o.Job.Label]
		if len(unique) == 0 {
			continue
		}
		ew.printf("\nOnly %s:\n", label)
		for _, r := range unique {
			writeWrappedItem(ew, "  - ", r)
		}
	}
	return ew.err
}

func (t *TextWriter) WriteBatch(w io.Writer, outcomes []review.Outcome) error {
	ew := &errWriter{w: w}
	failed := 0
	for i, o := range outcomes {
		ew.printf("[%d/%d] %s\n", i+1, len(outcomes), outcomeLabel(i, o))
		if o.Err != nil {
			failed++
			ew.printf("  error: %s\n\n", o.ErrorText())
			continue
		}
		writeTextResult(ew, &o.Result)
		ew.println("")
	}
	ew.printf("%d reviews, %d failed\n", len(outcomes), failed)
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func personaTitle(res *review.Result) string {
	if res.PersonaName != "" {
		return res.PersonaName
	}
	return string(res.Persona)
}

func ratingBar(v float64) string {
	filled := int(v/review.MaxRating*barWidth + 0.5)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func writeWrappedItem(ew *errWriter, prefix, text string) {
	indent := strings.Repeat(" ", len(prefix))
	for i, line := range wrapText(text, wrapWidth-len(prefix)) {
		if i == 0 {
			ew.printf("%s%s\n", prefix, line)
		} else {
			ew.printf("%s%s\n", indent, line)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
