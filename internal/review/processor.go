package review

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/promptcoach/internal/persona"
)

// Default list caps. The refinement cap covers the widest persona range
// (the interviewer asks for up to eight).
const (
	DefaultMaxQuestions   = 5
	DefaultMaxRefinements = 8
)

// ProcessOptions bounds the processed result.
type ProcessOptions struct {
	MaxQuestions   int
	MaxRefinements int
	FeedbackLimit  int
}

// DefaultProcessOptions returns the standard caps.
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		MaxQuestions:   DefaultMaxQuestions,
		MaxRefinements: DefaultMaxRefinements,
		FeedbackLimit:  DefaultFeedbackLimit,
	}
}

func (o ProcessOptions) normalize() ProcessOptions {
	d := DefaultProcessOptions()
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = d.MaxQuestions
	}
	if o.MaxRefinements <= 0 {
		o.MaxRefinements = d.MaxRefinements
	}
	if o.FeedbackLimit <= 0 {
		o.FeedbackLimit = d.FeedbackLimit
	}
	return o
}

// Field aliases accepted from providers that drift from the requested keys.
var (
	suggestedKeys   = []string{"suggested_prompt", "suggestedPrompt", "improved_prompt", "suggestion"}
	questionKeys    = []string{"questions", "clarifying_questions"}
	refinementKeys  = []string{"refinements", "suggestions", "improvements"}
	ratingKeys      = []string{"ratings", "scores"}
	feedbackKeys    = []string{"feedback", "overall_feedback", "summary"}
	requiredPayload = []string{"suggested_prompt", "questions", "refinements", "ratings", "feedback"}
)

// Process turns provider text into a bounded Result. It never fails: text
// without a JSON object becomes unstructured feedback with default ratings.
// Metadata such as persona, provider and usage is left for the caller.
func Process(raw string, opts ProcessOptions) Result {
	opts = opts.normalize()
	payload, ok := Extract(raw)
	if !ok {
		return Result{
			Questions:      []string{},
			Refinements:    []string{},
			Ratings:        UniformRatings(DefaultRating),
			Feedback:       SanitizeFeedback(raw, opts.FeedbackLimit),
			RawQuestions:   []string{},
			RawRefinements: []string{},
			RawFeedback:    raw,
			RawResponse:    raw,
			Issues:         []string{"response contained no JSON object"},
		}
	}
	res := processPayload(payload, opts)
	res.RawResponse = raw
	res.Structured = true
	return res
}

func processPayload(payload map[string]any, opts ProcessOptions) Result {
	var res Result

	// Raw copies are taken before any sanitizing step runs.
	res.RawSuggestedPrompt = stringish(lookup(payload, suggestedKeys))
	res.RawQuestions = listish(lookup(payload, questionKeys))
	res.RawRefinements = listish(lookup(payload, refinementKeys))
	res.RawFeedback = stringish(lookup(payload, feedbackKeys))

	res.SuggestedPrompt = SanitizeSuggestedPrompt(res.RawSuggestedPrompt)
	res.Questions = boundList(res.RawQuestions, SanitizeQuestion, opts.MaxQuestions)
	res.Refinements = boundList(res.RawRefinements, SanitizeRefinement, opts.MaxRefinements)
	res.Ratings = parseRatings(lookup(payload, ratingKeys))
	res.Feedback = SanitizeFeedback(res.RawFeedback, opts.FeedbackLimit)
	res.Issues = completeness(payload)
	return res
}

// completeness lists the requested fields the payload left out.
func completeness(payload map[string]any) []string {
	var missing []string
	for _, k := range requiredPayload {
		v, ok := payload[k]
		if !ok || isEmpty(v) {
			missing = append(missing, "missing "+k)
		}
	}
	if m, ok := payload["ratings"].(map[string]any); ok {
		for _, d := range Dimensions {
			if _, ok := lookupFold(m, string(d)); !ok {
				missing = append(missing, "missing ratings."+string(d))
			}
		}
	}
	return append(missing, ValidatePayload(payload)...)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func lookup(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := lookupFold(m, k); ok {
			return v
		}
	}
	return nil
}

func lookupFold(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// stringish returns v verbatim when it is a string and a JSON rendering
// otherwise, so nothing the provider sent is lost from the raw copy.
func stringish(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringish(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// listish accepts a JSON array or a newline separated string.
func listish(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			switch et := e.(type) {
			case string:
				out = append(out, et)
			case map[string]any:
				// {"question": "..."} style items
				if s, ok := lookup(et, []string{"question", "text", "refinement", "suggestion"}).(string); ok {
					out = append(out, s)
				}
			case nil:
			default:
				out = append(out, fmt.Sprint(et))
			}
		}
	case string:
		for _, line := range strings.Split(t, "\n") {
			if strings.TrimSpace(line) != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func boundList(raw []string, clean func(string) string, limit int) []string {
	out := make([]string, 0, min(len(raw), limit))
	for _, s := range raw {
		if len(out) == limit {
			break
		}
		if c := clean(s); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func parseRatings(v any) Ratings {
	r := UniformRatings(DefaultRating)
	m, ok := v.(map[string]any)
	if !ok {
		return r
	}
	for _, d := range Dimensions {
		if raw, ok := lookupFold(m, string(d)); ok {
			r.set(d, ratingValue(raw))
		}
	}
	return r
}

// ratingValue converts one provider rating. Numbers and numeric strings
// ("8", "7.5", "8/10") are clamped to [0,10]; anything else is the default.
func ratingValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return clampRating(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return DefaultRating
		}
		return clampRating(f)
	case int:
		return clampRating(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if i := strings.IndexByte(s, '/'); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return DefaultRating
		}
		return clampRating(f)
	}
	return DefaultRating
}

// FallbackResult is the fixed review for profile, used when live calls are
// disabled or failed.
func FallbackResult(profile persona.Profile, opts ProcessOptions) Result {
	opts = opts.normalize()
	fb := profile.Fallback
	res := Result{
		Persona:            profile.Variant,
		PersonaName:        profile.Name,
		Questions:          boundList(fb.Questions, SanitizeQuestion, opts.MaxQuestions),
		Refinements:        boundList(fb.Refinements, SanitizeRefinement, opts.MaxRefinements),
		Ratings:            UniformRatings(fb.Rating),
		Feedback:           SanitizeFeedback(fb.Feedback, opts.FeedbackLimit),
		RawQuestions:       append([]string{}, fb.Questions...),
		RawRefinements:     append([]string{}, fb.Refinements...),
		RawFeedback:        fb.Feedback,
		RawSuggestedPrompt: "",
		AIUsed:             false,
		CreatedAt:          time.Now().UTC(),
	}
	return res
}
