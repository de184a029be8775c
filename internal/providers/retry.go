package providers

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"go.uber.org/zap"
)

// Policy decides whether a failed attempt is retried and how long to wait.
type Policy struct {
	MaxAttempts      int
	MaxParseAttempts int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	TimeoutDelay     time.Duration
	// JitterFraction bounds the random extra delay as a share of the
	// exponential delay.
	JitterFraction float64
	AttemptTimeout time.Duration
}

// DefaultPolicy returns three attempts, two for malformed responses, 2s
// exponential base and a 60s per-attempt deadline.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		MaxParseAttempts: 2,
		BaseDelay:        2 * time.Second,
		MaxDelay:         30 * time.Second,
		TimeoutDelay:     2 * time.Second,
		JitterFraction:   0.2,
		AttemptTimeout:   60 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MaxParseAttempts <= 0 {
		p.MaxParseAttempts = d.MaxParseAttempts
	}
	if p.MaxParseAttempts > p.MaxAttempts {
		p.MaxParseAttempts = p.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.TimeoutDelay < 0 {
		p.TimeoutDelay = 0
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	return p
}

// ShouldRetry reports whether another attempt follows a failure of kind on
// attempt (1-based), given the number of parse failures seen so far
// including this one.
func (p Policy) ShouldRetry(kind Kind, attempt, parseFailures int) bool {
	p = p.withDefaults()
	if !kind.Retryable() {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if kind == KindParse && parseFailures >= p.MaxParseAttempts {
		return false
	}
	return true
}

// Delay returns the wait after a failure of kind on attempt. jitter is a
// sample in [0,1).
func (p Policy) Delay(kind Kind, attempt int, jitter float64) time.Duration {
	p = p.withDefaults()
	switch kind {
	case KindTimeout:
		return p.TimeoutDelay
	case KindParse:
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	d := exp + exp*p.JitterFraction*clamp01(jitter)
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func clamp01(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 1 {
		return math.Nextafter(1, 0)
	}
	return f
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AttemptFunc performs one attempt.
type AttemptFunc func(ctx context.Context) (RawResponse, error)

// Retrier wraps single attempts into a resilient call. It holds no mutable
// state and is safe for concurrent use.
type Retrier struct {
	policy Policy
	sleep  Sleeper
	jitter func() float64
	logger *zap.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithSleeper replaces the wall-clock sleep, mainly for tests.
func WithSleeper(s Sleeper) RetrierOption {
	return func(r *Retrier) { r.sleep = s }
}

// WithJitter replaces the random jitter source.
func WithJitter(f func() float64) RetrierOption {
	return func(r *Retrier) { r.jitter = f }
}

// WithRetryLogger sets the logger for retry decisions.
func WithRetryLogger(l *zap.Logger) RetrierOption {
	return func(r *Retrier) { r.logger = l }
}

// NewRetrier builds a Retrier for policy.
func NewRetrier(policy Policy, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		policy: policy.withDefaults(),
		sleep:  SleepContext,
		jitter: rand.Float64,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do runs fn until it succeeds or fails terminally and returns the number of
// attempts made. Terminal errors are always *Error values.
func (r *Retrier) Do(ctx context.Context, fn AttemptFunc) (RawResponse, int, error) {
	deadline := timeout.New[RawResponse](timeout.Config{DefaultTimeout: r.policy.AttemptTimeout})
	parseFailures := 0

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return RawResponse{}, attempt - 1, &Error{Kind: KindCancelled, Op: "retry", Attempts: attempt - 1, Err: err}
		}

		started := time.Now()
		resp, err := deadline.Execute(ctx, r.policy.AttemptTimeout, func(ctx context.Context) (RawResponse, error) {
			return fn(ctx)
		})
		if err == nil {
			return resp, attempt, nil
		}

		cerr := r.classify(ctx, err, time.Since(started))
		if cerr.Kind == KindParse {
			parseFailures++
		}

		if !r.policy.ShouldRetry(cerr.Kind, attempt, parseFailures) {
			return RawResponse{}, attempt, r.terminal(cerr, attempt)
		}

		delay := r.policy.Delay(cerr.Kind, attempt, r.jitter())
		if cerr.Kind == KindRateLimit && cerr.RetryAfter > delay {
			delay = min(cerr.RetryAfter, r.policy.MaxDelay)
		}
		r.logger.Warn("review attempt failed, retrying",
			zap.String("provider", cerr.Provider),
			zap.Int("attempt", attempt),
			zap.String("kind", cerr.Kind.String()),
			zap.Duration("delay", delay),
		)

		if delay <= 0 {
			if err := ctx.Err(); err != nil {
				return RawResponse{}, attempt, &Error{Kind: KindCancelled, Provider: cerr.Provider, Op: "backoff", Attempts: attempt, Err: err}
			}
			continue
		}
		if err := r.sleep(ctx, delay); err != nil {
			return RawResponse{}, attempt, &Error{Kind: KindCancelled, Provider: cerr.Provider, Op: "backoff", Attempts: attempt, Err: err}
		}
	}
}

// classify maps any attempt error to an *Error. Caller cancellation always
// wins over whatever the attempt reported.
func (r *Retrier) classify(ctx context.Context, err error, elapsed time.Duration) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return &Error{Kind: KindCancelled, Op: "attempt", Err: err}
		}
		// The caller's own deadline expired; nothing left to retry into.
		return &Error{Kind: KindCancelled, Op: "attempt", Err: ctxErr}
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindCancelled {
			// An attempt-scoped cancellation with a live parent is the
			// attempt deadline firing.
			c := *e
			c.Kind = KindTimeout
			return &c
		}
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || elapsed >= r.policy.AttemptTimeout {
		return &Error{Kind: KindTimeout, Op: "attempt", Err: err}
	}
	return &Error{Kind: KindTransientServer, Op: "attempt", Err: err}
}

func (r *Retrier) terminal(last *Error, attempts int) *Error {
	switch last.Kind {
	case KindParse, KindConfiguration, KindCancelled:
		e := *last
		e.Attempts = attempts
		return &e
	case KindUnknown:
		return &Error{Kind: KindTransientServer, Provider: last.Provider, Op: last.Op, Attempts: attempts, Err: last}
	}
	return &Error{
		Kind:     KindRetriesExhausted,
		Provider: last.Provider,
		Op:       "retry",
		Attempts: attempts,
		Err:      last,
	}
}
