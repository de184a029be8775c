package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/promptcoach/internal/cache"
	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/redact"
	"github.com/dshills/promptcoach/internal/usage"
)

// ResponseCache is the subset of cache.Store the engine uses.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, response string) error
}

// Options are per-call switches for Review.
type Options struct {
	// Submission carries the author's notes. Its Text is replaced by the
	// prompt passed to Review.
	Submission persona.Submission
	// DisableAI returns the persona's fallback review without any call.
	DisableAI bool
	// FallbackOnError turns any failure except cancellation into a
	// fallback result with Error set.
	FallbackOnError bool
	SkipCache       bool
	UserID          string
}

// Engine runs reviews. It is safe for concurrent use; the registry is its
// only shared mutable state.
type Engine struct {
	registry      *providers.Registry
	retrier       *providers.Retrier
	process       ProcessOptions
	cache         ResponseCache
	ledger        usage.Ledger
	quota         usage.Quota
	rules         *Rules
	redactSecrets bool
	logger        *zap.Logger
	now           func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithRetrier(r *providers.Retrier) EngineOption {
	return func(e *Engine) { e.retrier = r }
}

func WithCache(c ResponseCache) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLedger records every live review in l and enforces q before calling
// the provider.
func WithLedger(l usage.Ledger, q usage.Quota) EngineOption {
	return func(e *Engine) {
		e.ledger = l
		e.quota = q
	}
}

// WithRedaction controls secret redaction of the submission. It is on by
// default.
func WithRedaction(on bool) EngineOption {
	return func(e *Engine) { e.redactSecrets = on }
}

// WithRules appends the rules pack's guidance to every request.
func WithRules(r *Rules) EngineOption {
	return func(e *Engine) { e.rules = r }
}

func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func WithProcessOptions(o ProcessOptions) EngineOption {
	return func(e *Engine) { e.process = o.normalize() }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine that obtains adapters from registry.
func NewEngine(registry *providers.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:      registry,
		process:       DefaultProcessOptions(),
		cache:         cache.Nop{},
		redactSecrets: true,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.retrier == nil {
		e.retrier = providers.NewRetrier(providers.DefaultPolicy(), providers.WithRetryLogger(e.logger))
	}
	return e
}

// Review runs one review of prompt. On success the result is live, cached
// or a fallback; on failure the error is a classified *providers.Error.
func (e *Engine) Review(ctx context.Context, prompt string, variant persona.Variant, cfg providers.Config, opts Options) (Result, error) {
	start := e.now()
	requestID := uuid.NewString()
	log := e.logger.With(zap.String("request_id", requestID), zap.String("persona", string(variant)))

	profile, err := persona.ProfileFor(variant)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return Result{}, &providers.Error{Kind: providers.KindConfiguration, Op: "request", Err: providers.ErrEmptyPrompt}
	}

	if opts.DisableAI {
		log.Debug("live review disabled, using fallback")
		return e.fallback(profile, requestID, start, ""), nil
	}

	cfg = cfg.Normalize()
	adapter, err := e.registry.Get(cfg)
	if err != nil {
		return e.failed(log, profile, requestID, start, cfg, opts, err)
	}
	log = log.With(zap.String("provider", adapter.Name()), zap.String("model", adapter.Model()))

	if err := usage.CheckQuota(ctx, e.ledger, opts.UserID, e.quota); err != nil {
		if !errors.Is(err, usage.ErrQuotaExceeded) {
			log.Warn("usage check failed, continuing", zap.Error(err))
		} else {
			qerr := &providers.Error{Kind: providers.KindRateLimit, Provider: adapter.Name(), Op: "quota", Err: err}
			return e.failed(log, profile, requestID, start, cfg, opts, qerr)
		}
	}

	sub := opts.Submission
	sub.Text = prompt
	sub.Context = append([]providers.Exchange(nil), sub.Context...)
	if e.redactSecrets {
		if fields, secrets := e.redactSubmission(&sub); fields > 0 {
			log.Info("redacted secrets from submission", zap.Int("fields", fields), zap.Int("secrets", secrets))
		}
	}

	req, err := providers.NewReviewRequest(sub.Text, profile.Instructions, profile.UserMessage(sub)+e.rules.Section(), profile.Temperature, profile.MaxTokens, sub.Context)
	if err != nil {
		return e.failed(log, profile, requestID, start, cfg, opts, err)
	}

	key := cache.BuildKey(cache.KeyParts{
		Identity:    cfg.Identity(),
		Persona:     string(profile.Variant),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		System:      req.SystemPrompt,
		User:        req.UserMessage,
	})
	if !opts.SkipCache {
		if raw, ok := e.cache.Get(ctx, key); ok {
			var rr providers.RawResponse
			if err := json.Unmarshal([]byte(raw), &rr); err == nil && CheckStructure(rr.Content) == nil {
				log.Debug("cache hit")
				res := e.finish(profile, requestID, start, adapter, req, rr, 0)
				res.Cached = true
				return res, nil
			}
			log.Warn("discarding unreadable cache entry")
		}
	}

	rr, attempts, err := e.retrier.Do(ctx, func(ctx context.Context) (providers.RawResponse, error) {
		resp, err := adapter.GenerateReview(ctx, req)
		if err != nil {
			return providers.RawResponse{}, err
		}
		if perr := CheckStructure(resp.Content); perr != nil {
			var pe *providers.Error
			if errors.As(perr, &pe) {
				pe.Provider = adapter.Name()
			}
			return providers.RawResponse{}, perr
		}
		return resp, nil
	})
	if err != nil {
		return e.failed(log, profile, requestID, start, cfg, opts, err)
	}

	res := e.finish(profile, requestID, start, adapter, req, rr, attempts)

	if e.ledger != nil {
		ev := usage.Event{
			RequestID:    requestID,
			UserID:       opts.UserID,
			Provider:     res.Provider,
			Model:        res.Model,
			Persona:      string(profile.Variant),
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
			Cost:         res.Usage.EstimatedCost,
			Timestamp:    res.CreatedAt,
		}
		if err := e.ledger.Record(ctx, ev); err != nil {
			log.Warn("recording usage failed", zap.Error(err))
		}
	}
	if data, err := json.Marshal(rr); err == nil {
		if err := e.cache.Put(ctx, key, string(data)); err != nil {
			log.Warn("caching response failed", zap.Error(err))
		}
	}

	log.Info("review complete",
		zap.Int("attempts", attempts),
		zap.Bool("structured", res.Structured),
		zap.Int("tokens", res.Usage.TotalTokens),
		zap.Int64("total_ms", res.Timing.TotalMs),
	)
	return res, nil
}

func (e *Engine) finish(profile persona.Profile, requestID string, start time.Time, adapter providers.Adapter, req providers.ReviewRequest, rr providers.RawResponse, attempts int) Result {
	res := Process(rr.Content, e.process)
	res.RequestID = requestID
	res.Persona = profile.Variant
	res.PersonaName = profile.Name
	res.AIUsed = true
	res.Attempts = attempts
	res.Provider = rr.Provider
	if res.Provider == "" {
		res.Provider = adapter.Name()
	}
	res.Model = rr.Model
	if res.Model == "" {
		res.Model = adapter.Model()
	}

	in, out, estimated := rr.InputTokens, rr.OutputTokens, false
	if in == 0 && out == 0 {
		in = adapter.CountTokens(req.SystemPrompt + "\n" + req.UserMessage)
		out = adapter.CountTokens(rr.Content)
		estimated = true
	}
	res.Usage = Usage{
		InputTokens:   in,
		OutputTokens:  out,
		TotalTokens:   in + out,
		EstimatedCost: adapter.EstimateCost(in, out),
		Estimated:     estimated,
	}

	end := e.now()
	res.Timing = Timing{LLMMs: rr.Latency.Milliseconds(), TotalMs: end.Sub(start).Milliseconds()}
	res.CreatedAt = end.UTC()
	return res
}

// failed turns err into a fallback when the caller asked for one.
// Cancellation is never masked.
func (e *Engine) failed(log *zap.Logger, profile persona.Profile, requestID string, start time.Time, cfg providers.Config, opts Options, err error) (Result, error) {
	kind := providers.KindOf(err)
	log.Warn("review failed", zap.String("kind", kind.String()), zap.String("error", redact.Error(err, cfg.APIKey)))
	if !opts.FallbackOnError || kind == providers.KindCancelled {
		return Result{}, err
	}
	return e.fallback(profile, requestID, start, redact.Error(err, cfg.APIKey)), nil
}

func (e *Engine) fallback(profile persona.Profile, requestID string, start time.Time, reason string) Result {
	res := FallbackResult(profile, e.process)
	res.RequestID = requestID
	res.Error = reason
	end := e.now()
	res.Timing = Timing{TotalMs: end.Sub(start).Milliseconds()}
	res.CreatedAt = end.UTC()
	return res
}

// redactSubmission scrubs every free-text field in place and reports how many
// fields changed and how many secrets were removed.
func (e *Engine) redactSubmission(sub *persona.Submission) (int, int) {
	fields := []*string{&sub.Text, &sub.Description, &sub.WhatILearned, &sub.WhatWentWell, &sub.Reflections}
	for i := range sub.Context {
		fields = append(fields, &sub.Context[i].Question, &sub.Context[i].Answer)
	}
	secrets := 0
	for _, f := range fields {
		if *f != "" {
			secrets += redact.Count(*f)
		}
	}
	return redact.Fields(fields...), secrets
}
