package output

import (
	"io"
	"strings"

	"github.com/dshills/promptcoach/internal/review"
)

// MarkdownWriter outputs a report suitable for notes, issues or chat.
// Provider text is stripped of HTML and escaped before it is embedded.
type MarkdownWriter struct{}

func (m *MarkdownWriter) WriteResult(w io.Writer, res *review.Result) error {
	ew := &errWriter{w: w}
	writeMarkdownResult(ew, res, "##")
	return ew.err
}

func writeMarkdownResult(ew *errWriter, res *review.Result, heading string) {
	ew.printf("%s Prompt Review: %s\n\n", heading, personaTitle(res))
	if res.AIUsed {
		ew.printf("*%s / %s*", res.Provider, res.Model)
		if res.Cached {
			ew.printf(" *(cached)*")
		}
		ew.printf("\n\n")
	} else {
		ew.printf("> **Fallback review.** No live AI call was made.")
		if res.Error != "" {
			ew.printf(" Reason: `%s`", strings.ReplaceAll(res.Error, "`", "'"))
		}
		ew.printf("\n\n")
	}

	ew.printf("| Dimension | Rating |\n")
	ew.printf("|-----------|--------|\n")
	for _, d := range review.Dimensions {
		ew.printf("| %s | %.1f |\n", d, res.Ratings.Get(d))
	}
	ins := res.Insights()
	ew.printf("| **Average** | **%.1f** |\n\n", ins.AverageRating)
	ew.printf("Strongest: **%s** (%.1f). Weakest: **%s** (%.1f).\n\n",
		ins.StrongestDimension, ins.StrongestRating, ins.WeakestDimension, ins.WeakestRating)

	if res.SuggestedPrompt != "" {
		ew.printf("%s# Suggested prompt\n\n", heading)
		ew.printf("```text\n%s\n```\n\n", strings.ReplaceAll(res.SuggestedPrompt, "```", "'''"))
	}

	if len(res.Questions) > 0 {
		ew.printf("%s# Questions to consider\n\n", heading)
		for i, q := range res.Questions {
			ew.printf("%d. %s\n", i+1, review.ForDisplay(q))
		}
		ew.println("")
	}

	if len(res.Refinements) > 0 {
		ew.printf("%s# Refinements\n\n", heading)
		for _, r := range res.Refinements {
			ew.printf("- %s\n", review.ForDisplay(r))
		}
		ew.println("")
	}

	if res.Feedback != "" {
		ew.printf("%s# Feedback\n\n", heading)
		ew.printf("%s\n\n", review.ForDisplay(res.Feedback))
	}

	if len(res.Issues) > 0 {
		ew.printf("<details>\n<summary>Response notes (%d)</summary>\n\n", len(res.Issues))
		for _, issue := range res.Issues {
			ew.printf("- %s\n", review.ForDisplay(issue))
		}
		ew.printf("\n</details>\n\n")
	}

	if res.AIUsed {
		ew.printf("*%d input / %d output tokens, est. $%.4f, %d attempt(s), reviewed in %dms*\n",
			res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.EstimatedCost, res.Attempts, res.Timing.TotalMs)
	}
}

func (m *MarkdownWriter) WriteComparison(w io.Writer, cmp *review.Comparison) error {
	ew := &errWriter{w: w}

	ew.printf("## Prompt Comparison\n\n")
	ew.printf("| Reviewer |")
	for _, d := range review.Dimensions {
		ew.printf(" %s |", d)
	}
	ew.printf(" Average |\n|---|")
	for range review.Dimensions {
		ew.printf("---|")
	}
	ew.printf("---|\n")

	for i, o := range cmp.Outcomes {
		label := review.ForDisplay(outcomeLabel(i, o))
		if o.Err != nil {
			ew.printf("| %s | %s |\n", label, review.ForDisplay(o.ErrorText()))
			continue
		}
		ew.printf("| %s |", label)
		for _, d := range review.Dimensions {
			ew.printf(" %.1f |", o.Result.Ratings.Get(d))
		}
		ew.printf(" %.1f |\n", o.Result.Ratings.Average())
	}
	ew.printf("| **Average** |")
	for _, d := range review.Dimensions {
		ew.printf(" **%.1f** |", cmp.AverageRatings.Get(d))
	}
	ew.printf(" **%.1f** |\n\n", cmp.AverageRatings.Average())

	if len(cmp.Consensus) > 0 {
		ew.printf("### Agreed refinements\n\n")
		for _, r := range cmp.Consensus {
			ew.printf("- %s\n", review.ForDisplay(r))
		}
		ew.println("")
	}
	for i, o := range cmp.Outcomes {
		unique := cmp.Unique[o.Job.Label]
		if len(unique) == 0 {
			continue
		}
		ew.printf("<details>\n<summary>Only %s (%d)</summary>\n\n", review.ForDisplay(outcomeLabel(i, o)), len(unique))
		for _, r := range unique {
			ew.printf("- %s\n", review.ForDisplay(r))
		}
		ew.printf("\n</details>\n\n")
	}
	return ew.err
}

func (m *MarkdownWriter) WriteBatch(w io.Writer, outcomes []review.Outcome) error {
	ew := &errWriter{w: w}
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	ew.printf("# Batch Review\n\n%d prompts, %d failed.\n\n", len(outcomes), failed)
	for i, o := range outcomes {
		ew.printf("---\n\n")
		if o.Err != nil {
			ew.printf("## %s\n\n**Error:** %s\n\n", review.ForDisplay(outcomeLabel(i, o)), review.ForDisplay(o.ErrorText()))
			continue
		}
		ew.printf("**%s**\n\n", review.ForDisplay(outcomeLabel(i, o)))
		writeMarkdownResult(ew, &o.Result, "##")
		ew.println("")
	}
	return ew.err
}
