package output

import (
	"errors"
	"time"

	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/review"
)

func sampleResult() *review.Result {
	return &review.Result{
		RequestID:       "req-1",
		Persona:         persona.Beginner,
		PersonaName:     "Beginner Guide",
		SuggestedPrompt: "Write a 12-line poem about autumn for children.",
		Questions:       []string{"Who is the audience?", "What mood should it have?"},
		Refinements:     []string{"Specify the length", "Name a <b>rhyme</b> scheme"},
		Ratings:         review.Ratings{Length: 4, Complexity: 3, Specificity: 2, Clarity: 8, Creativity: 6, Context: 2},
		Feedback:        "Good start. Add an audience & a format.",
		Structured:      true,
		Issues:          []string{"missing ratings.context"},
		AIUsed:          true,
		Provider:        "openai",
		Model:           "gpt-4o",
		Attempts:        1,
		Usage:           review.Usage{InputTokens: 120, OutputTokens: 80, TotalTokens: 200, EstimatedCost: 0.0011},
		Timing:          review.Timing{LLMMs: 900, TotalMs: 950},
		CreatedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func sampleComparison() *review.Comparison {
	a := *sampleResult()
	b := *sampleResult()
	b.Ratings = review.UniformRatings(6)
	return &review.Comparison{
		Outcomes: []review.Outcome{
			{Job: review.Job{Label: "beginner", Prompt: "Write a poem", Persona: persona.Beginner}, Result: a},
			{Job: review.Job{Label: "advanced", Prompt: "Write a poem", Persona: persona.Advanced}, Result: b},
			{Job: review.Job{Label: "interviewer", Prompt: "Write a poem", Persona: persona.Interviewer}, Err: errors.New("openai: rate_limit")},
		},
		AverageRatings: review.Ratings{Length: 5, Complexity: 4.5, Specificity: 4, Clarity: 7, Creativity: 6, Context: 4},
		Spread:         review.Ratings{Length: 2, Complexity: 3, Specificity: 4, Clarity: 2, Creativity: 0, Context: 4},
		Consensus:      []string{"Specify the length"},
		Unique:         map[string][]string{"advanced": {"Use a haiku"}},
	}
}
