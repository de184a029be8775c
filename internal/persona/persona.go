package persona

import (
	"fmt"
	"strings"

	"github.com/dshills/promptcoach/internal/providers"
)

// Variant is a skill-level persona tag.
type Variant string

const (
	Beginner     Variant = "beginner"
	Intermediate Variant = "intermediate"
	Advanced     Variant = "advanced"
	Interviewer  Variant = "interviewer"
)

// Default is used when no persona is configured.
const Default = Beginner

// Profile is everything a persona contributes to a review request.
type Profile struct {
	Variant      Variant
	Name         string
	Description  string
	Instructions string
	Difficulty   string
	Tone         string
	Temperature  float64
	MaxTokens    int
	// Questions and Refinements are the [min, max] counts requested from
	// the model.
	Questions   [2]int
	Refinements [2]int
	Fallback    FallbackReview
	// interview switches the user message to the interview template.
	interview bool
}

// FallbackReview is the fixed review returned when live calls are disabled
// or fail.
type FallbackReview struct {
	Questions   []string
	Refinements []string
	Feedback    string
	Rating      float64
}

var profiles = map[Variant]Profile{
	Beginner: {
		Variant:      Beginner,
		Name:         "Beginner Guide",
		Description:  "Patient and encouraging, explains concepts simply",
		Instructions: beginnerInstructions,
		Difficulty:   "foundational",
		Tone:         "warm, friendly and educational",
		Temperature:  0.7,
		MaxTokens:    2000,
		Questions:    [2]int{3, 5},
		Refinements:  [2]int{3, 5},
		Fallback: FallbackReview{
			Questions: []string{
				"What kind of response are you hoping to get from the AI?",
				"Who is the audience for this AI output?",
				"Are there any specific details or examples you'd like to include?",
			},
			Refinements: []string{
				"Add more context about what you want",
				"Be specific about the format you need",
				"Include an example if possible",
			},
			Feedback: "Great start! You're on the right track with this prompt.",
			Rating:   5,
		},
	},
	Intermediate: {
		Variant:      Intermediate,
		Name:         "Intermediate Coach",
		Description:  "Balances challenge and support with medium technical depth",
		Instructions: intermediateInstructions,
		Difficulty:   "medium",
		Tone:         "professional, encouraging and thought-provoking",
		Temperature:  0.7,
		MaxTokens:    2000,
		Questions:    [2]int{3, 5},
		Refinements:  [2]int{3, 5},
		Fallback: FallbackReview{
			Questions: []string{
				"What prompt engineering patterns are you applying here?",
				"How might you structure this for better token efficiency?",
				"Have you considered edge cases in the AI's response?",
			},
			Refinements: []string{
				"Consider using few-shot examples",
				"Add explicit output formatting instructions",
				"Define constraints more precisely",
			},
			Feedback: "Solid approach. Let's refine this to make it even more effective.",
			Rating:   6,
		},
	},
	Advanced: {
		Variant:      Advanced,
		Name:         "Advanced Mentor",
		Description:  "Expert-level guidance with challenging questions",
		Instructions: advancedInstructions,
		Difficulty:   "expert",
		Tone:         "direct, rigorous and supportive",
		Temperature:  0.7,
		MaxTokens:    2000,
		Questions:    [2]int{3, 5},
		Refinements:  [2]int{3, 5},
		Fallback: FallbackReview{
			Questions: []string{
				"How does this prompt leverage chain-of-thought reasoning?",
				"What are the potential adversarial inputs you've considered?",
				"How would this scale across different model architectures?",
				"What's your strategy for handling hallucinations?",
			},
			Refinements: []string{
				"Implement meta-prompting for better control",
				"Add constitutional AI principles",
				"Consider multi-step reasoning decomposition",
				"Optimize token usage with compression techniques",
			},
			Feedback: "Interesting approach. Consider these advanced optimizations.",
			Rating:   7,
		},
	},
	Interviewer: {
		Variant:      Interviewer,
		Name:         "Critical Interviewer",
		Description:  "Direct, critical feedback like a tough interviewer",
		Instructions: interviewerInstructions,
		Difficulty:   "interview",
		Tone:         "direct, critical and challenging",
		Temperature:  0.5,
		MaxTokens:    1200,
		Questions:    [2]int{4, 6},
		Refinements:  [2]int{6, 8},
		interview:    true,
		Fallback: FallbackReview{
			Questions: []string{
				"Why didn't you include specific output format requirements?",
				"What makes you think this prompt is clear enough?",
				"How would you handle edge cases?",
				"Where are your examples?",
				"Why is there no error handling?",
			},
			Refinements: []string{
				"Add clear structure - this is basic",
				"Include specific examples",
				"Define output format explicitly",
				"Handle edge cases properly",
				"Add constraints and limitations",
				"Use professional formatting",
				"Think through requirements first",
			},
			Feedback: "This needs work. Add structure, examples, and think through requirements more carefully.",
			Rating:   5,
		},
	},
}

var order = []Variant{Beginner, Intermediate, Advanced, Interviewer}

// ProfileFor returns the profile for v. Unknown variants are configuration
// errors.
func ProfileFor(v Variant) (Profile, error) {
	p, ok := profiles[v]
	if !ok {
		return Profile{}, unknownVariant(string(v))
	}
	p.Fallback = p.Fallback.clone()
	return p, nil
}

// Parse resolves a case-insensitive persona tag or display name.
func Parse(s string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return Default, nil
	}
	for _, v := range order {
		if key == string(v) || key == strings.ToLower(profiles[v].Name) {
			return v, nil
		}
	}
	return "", unknownVariant(s)
}

// Variants returns every persona in display order.
func Variants() []Variant {
	out := make([]Variant, len(order))
	copy(out, order)
	return out
}

// Profiles returns every profile in display order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(order))
	for _, v := range order {
		p, _ := ProfileFor(v)
		out = append(out, p)
	}
	return out
}

func (f FallbackReview) clone() FallbackReview {
	f.Questions = append([]string(nil), f.Questions...)
	f.Refinements = append([]string(nil), f.Refinements...)
	return f
}

func unknownVariant(s string) error {
	return &providers.Error{
		Kind: providers.KindConfiguration,
		Op:   "persona",
		Err:  fmt.Errorf("unknown persona %q (want one of %s)", s, joinVariants()),
	}
}

func joinVariants() string {
	names := make([]string, len(order))
	for i, v := range order {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
