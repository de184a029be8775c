package review

import (
	"math"
	"time"

	"github.com/dshills/promptcoach/internal/persona"
)

// Dimension names one of the six rating axes.
type Dimension string

const (
	DimensionLength      Dimension = "length"
	DimensionComplexity  Dimension = "complexity"
	DimensionSpecificity Dimension = "specificity"
	DimensionClarity     Dimension = "clarity"
	DimensionCreativity  Dimension = "creativity"
	DimensionContext     Dimension = "context"
)

// Dimensions lists every rating axis in display order.
var Dimensions = []Dimension{
	DimensionLength,
	DimensionComplexity,
	DimensionSpecificity,
	DimensionClarity,
	DimensionCreativity,
	DimensionContext,
}

const (
	MinRating     = 0.0
	MaxRating     = 10.0
	DefaultRating = 5.0
)

// Ratings holds one score per dimension. The struct shape guarantees all six
// are always present.
type Ratings struct {
	Length      float64 `json:"length"`
	Complexity  float64 `json:"complexity"`
	Specificity float64 `json:"specificity"`
	Clarity     float64 `json:"clarity"`
	Creativity  float64 `json:"creativity"`
	Context     float64 `json:"context"`
}

// UniformRatings returns ratings with every dimension set to v.
func UniformRatings(v float64) Ratings {
	v = clampRating(v)
	return Ratings{v, v, v, v, v, v}
}

// Get returns the score for d.
func (r Ratings) Get(d Dimension) float64 {
	switch d {
	case DimensionLength:
		return r.Length
	case DimensionComplexity:
		return r.Complexity
	case DimensionSpecificity:
		return r.Specificity
	case DimensionClarity:
		return r.Clarity
	case DimensionCreativity:
		return r.Creativity
	case DimensionContext:
		return r.Context
	}
	return 0
}

func (r *Ratings) set(d Dimension, v float64) {
	switch d {
	case DimensionLength:
		r.Length = v
	case DimensionComplexity:
		r.Complexity = v
	case DimensionSpecificity:
		r.Specificity = v
	case DimensionClarity:
		r.Clarity = v
	case DimensionCreativity:
		r.Creativity = v
	case DimensionContext:
		r.Context = v
	}
}

// Map returns the ratings keyed by dimension.
func (r Ratings) Map() map[Dimension]float64 {
	m := make(map[Dimension]float64, len(Dimensions))
	for _, d := range Dimensions {
		m[d] = r.Get(d)
	}
	return m
}

// Average returns the mean score rounded to one decimal.
func (r Ratings) Average() float64 {
	var sum float64
	for _, d := range Dimensions {
		sum += r.Get(d)
	}
	return round1(sum / float64(len(Dimensions)))
}

// Strongest returns the highest-rated dimension. Ties go to the earlier
// dimension.
func (r Ratings) Strongest() (Dimension, float64) {
	best := Dimensions[0]
	for _, d := range Dimensions[1:] {
		if r.Get(d) > r.Get(best) {
			best = d
		}
	}
	return best, r.Get(best)
}

// Weakest returns the lowest-rated dimension. Ties go to the earlier
// dimension.
func (r Ratings) Weakest() (Dimension, float64) {
	worst := Dimensions[0]
	for _, d := range Dimensions[1:] {
		if r.Get(d) < r.Get(worst) {
			worst = d
		}
	}
	return worst, r.Get(worst)
}

func clampRating(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultRating
	case v < MinRating:
		return MinRating
	case v > MaxRating:
		return MaxRating
	}
	return round1(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Usage is the provider usage attached to a live result.
type Usage struct {
	InputTokens   int     `json:"inputTokens"`
	OutputTokens  int     `json:"outputTokens"`
	TotalTokens   int     `json:"totalTokens"`
	EstimatedCost float64 `json:"estimatedCost"`
	// Estimated is true when token counts came from the local estimate
	// because the provider reported none.
	Estimated bool `json:"estimated,omitempty"`
}

// Timing contains performance metrics in milliseconds.
type Timing struct {
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// Result is the canonical, bounded output of a review.
type Result struct {
	RequestID   string          `json:"requestId"`
	Persona     persona.Variant `json:"persona"`
	PersonaName string          `json:"personaName"`

	SuggestedPrompt string   `json:"suggestedPrompt"`
	Questions       []string `json:"questions"`
	Refinements     []string `json:"refinements"`
	Ratings         Ratings  `json:"ratings"`
	Feedback        string   `json:"feedback"`

	RawSuggestedPrompt string   `json:"rawSuggestedPrompt"`
	RawQuestions       []string `json:"rawQuestions"`
	RawRefinements     []string `json:"rawRefinements"`
	RawFeedback        string   `json:"rawFeedback"`
	// RawResponse is the provider's complete text.
	RawResponse string `json:"rawResponse,omitempty"`

	// Structured reports whether a JSON object was found in the response.
	Structured bool     `json:"structured"`
	Issues     []string `json:"issues,omitempty"`

	AIUsed   bool   `json:"aiUsed"`
	Cached   bool   `json:"cached,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Usage    Usage  `json:"usage"`
	// Error carries the failure that caused a fallback result.
	Error string `json:"error,omitempty"`

	Timing    Timing    `json:"timing"`
	CreatedAt time.Time `json:"createdAt"`
}

// Insights summarises a result for quick display.
type Insights struct {
	AverageRating      float64   `json:"averageRating"`
	StrongestDimension Dimension `json:"strongestDimension"`
	StrongestRating    float64   `json:"strongestRating"`
	WeakestDimension   Dimension `json:"weakestDimension"`
	WeakestRating      float64   `json:"weakestRating"`
	Questions          int       `json:"questions"`
	Refinements        int       `json:"refinements"`
	HasSuggestion      bool      `json:"hasSuggestion"`
	FeedbackLength     int       `json:"feedbackLength"`
}

// Insights computes the summary for r.
func (r Result) Insights() Insights {
	sd, sv := r.Ratings.Strongest()
	wd, wv := r.Ratings.Weakest()
	return Insights{
		AverageRating:      r.Ratings.Average(),
		StrongestDimension: sd,
		StrongestRating:    sv,
		WeakestDimension:   wd,
		WeakestRating:      wv,
		Questions:          len(r.Questions),
		Refinements:        len(r.Refinements),
		HasSuggestion:      r.SuggestedPrompt != "",
		FeedbackLength:     len([]rune(r.Feedback)),
	}
}
