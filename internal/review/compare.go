package review

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/providers"
)

// DefaultConcurrency bounds ReviewMany when the caller passes no limit.
const DefaultConcurrency = 4

// Job is one review to run as part of a batch or comparison.
type Job struct {
	Label   string           `json:"label"`
	Prompt  string           `json:"prompt"`
	Persona persona.Variant  `json:"persona"`
	Config  providers.Config `json:"-"`
	Options Options          `json:"-"`
}

// Outcome pairs a job with its result or error.
type Outcome struct {
	Job    Job    `json:"job"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
}

// ErrorText returns the failure message, or "" on success.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ReviewMany runs jobs concurrently, at most limit at a time, and returns
// outcomes in job order. A failed job does not stop the others; only
// cancellation of ctx ends the batch early.
func (e *Engine) ReviewMany(ctx context.Context, jobs []Job, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := e.Review(gctx, job.Prompt, job.Persona, job.Config, job.Options)
			out[i] = Outcome{Job: job, Result: res, Err: err}
			if providers.KindOf(err) == providers.KindCancelled && ctx.Err() != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Comparison merges several reviews of the same prompt.
type Comparison struct {
	Outcomes []Outcome `json:"outcomes"`
	// AverageRatings is the per-dimension mean over successful outcomes.
	AverageRatings Ratings `json:"averageRatings"`
	// Spread is the per-dimension max minus min.
	Spread Ratings `json:"spread"`
	// Consensus holds refinements that two or more reviewers suggested.
	Consensus []string `json:"consensus"`
	// Unique holds the remaining refinements keyed by outcome label.
	Unique map[string][]string `json:"unique"`
}

// ComparePersonas reviews prompt once per variant with the same provider.
func (e *Engine) ComparePersonas(ctx context.Context, prompt string, variants []persona.Variant, cfg providers.Config, opts Options) (*Comparison, error) {
	jobs := make([]Job, len(variants))
	for i, v := range variants {
		jobs[i] = Job{Label: string(v), Prompt: prompt, Persona: v, Config: cfg, Options: opts}
	}
	return e.compare(ctx, jobs)
}

// CompareProviders reviews prompt once per provider config with the same
// persona.
func (e *Engine) CompareProviders(ctx context.Context, prompt string, variant persona.Variant, cfgs []providers.Config, opts Options) (*Comparison, error) {
	jobs := make([]Job, len(cfgs))
	for i, c := range cfgs {
		n := c.Normalize()
		jobs[i] = Job{Label: fmt.Sprintf("%s:%s", n.Vendor, n.Model), Prompt: prompt, Persona: variant, Config: c, Options: opts}
	}
	return e.compare(ctx, jobs)
}

func (e *Engine) compare(ctx context.Context, jobs []Job) (*Comparison, error) {
	outcomes, err := e.ReviewMany(ctx, jobs, len(jobs))
	if err != nil {
		return nil, err
	}
	return mergeOutcomes(outcomes), nil
}

func mergeOutcomes(outcomes []Outcome) *Comparison {
	cmp := &Comparison{
		Outcomes:  outcomes,
		Consensus: []string{},
		Unique:    make(map[string][]string),
	}

	var ok []Outcome
	for _, o := range outcomes {
		if o.Err == nil {
			ok = append(ok, o)
		}
	}
	if len(ok) == 0 {
		return cmp
	}

	for _, d := range Dimensions {
		lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
		for _, o := range ok {
			v := o.Result.Ratings.Get(d)
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		cmp.AverageRatings.set(d, round1(sum/float64(len(ok))))
		cmp.Spread.set(d, round1(hi-lo))
	}

	// A refinement is consensus if a similar one appears in another outcome.
	type ref struct{ outcome, idx int }
	matched := make(map[ref]bool)
	for i := 0; i < len(ok); i++ {
		for fi, f := range ok[i].Result.Refinements {
			for j := i + 1; j < len(ok); j++ {
				for gj, g := range ok[j].Result.Refinements {
					if textSimilar(f, g) {
						matched[ref{i, fi}] = true
						matched[ref{j, gj}] = true
						break
					}
				}
			}
		}
	}

	seen := make(map[string]bool)
	for i, o := range ok {
		for fi, f := range o.Result.Refinements {
			if !matched[ref{i, fi}] {
				cmp.Unique[o.Job.Label] = append(cmp.Unique[o.Job.Label], f)
				continue
			}
			k := strings.ToLower(f)
			if seen[k] || containsSimilar(cmp.Consensus, f) {
				continue
			}
			seen[k] = true
			cmp.Consensus = append(cmp.Consensus, f)
		}
	}
	return cmp
}

func containsSimilar(list []string, s string) bool {
	for _, v := range list {
		if textSimilar(v, s) {
			return true
		}
	}
	return false
}

// textSimilar matches case-insensitive equality, substrings, or more than
// half of the shorter text's words in common.
func textSimilar(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[strings.Trim(w, ".,;:!?")] = true
	}
	overlap := 0
	for _, w := range wordsA {
		if setB[strings.Trim(w, ".,;:!?")] {
			overlap++
		}
	}
	return float64(overlap)/float64(min(len(wordsA), len(wordsB))) > 0.5
}

// ParseModelSpec splits "provider:model" into a vendor and model.
func ParseModelSpec(spec string) (providers.Vendor, string, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model spec %q: expected provider:model", spec)
	}
	v, err := providers.ParseVendor(parts[0])
	if err != nil {
		return "", "", err
	}
	return v, parts[1], nil
}
