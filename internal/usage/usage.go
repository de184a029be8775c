package usage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AnonymousUser is the ledger key for requests without a user ID.
const AnonymousUser = "anonymous"

// ErrQuotaExceeded is returned by CheckQuota when a user has used up an
// allowance.
var ErrQuotaExceeded = errors.New("usage quota exceeded")

// Event is one completed live review.
type Event struct {
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Persona      string    `json:"persona"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost_est_usd"`
	Timestamp    time.Time `json:"timestamp"`
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Reviews int64   `json:"reviews"`
	Input   int64   `json:"input"`
	Output  int64   `json:"output"`
	Total   int64   `json:"total"`
	Cost    float64 `json:"cost_est_usd"`
}

// Add folds one event into the counts.
func (tc *TokenCounts) Add(e Event) {
	tc.Reviews++
	tc.Input += int64(e.InputTokens)
	tc.Output += int64(e.OutputTokens)
	tc.Total += int64(e.InputTokens + e.OutputTokens)
	tc.Cost += e.Cost
}

// Totals is a user's aggregate usage.
type Totals struct {
	UserID     string                 `json:"user_id"`
	All        TokenCounts            `json:"all"`
	ByProvider map[string]TokenCounts `json:"by_provider"`
}

// Quota caps a single user's usage. Zero fields are unlimited.
type Quota struct {
	MaxReviews int64   `json:"max_reviews" yaml:"maxReviews"`
	MaxTokens  int64   `json:"max_tokens" yaml:"maxTokens"`
	MaxCost    float64 `json:"max_cost_usd" yaml:"maxCostUSD"`
}

// Unlimited reports whether q imposes no cap.
func (q Quota) Unlimited() bool {
	return q.MaxReviews <= 0 && q.MaxTokens <= 0 && q.MaxCost <= 0
}

// Ledger records review usage per user.
type Ledger interface {
	Record(ctx context.Context, e Event) error
	Totals(ctx context.Context, userID string) (Totals, error)
}

// CheckQuota returns ErrQuotaExceeded, wrapped with the exhausted
// allowance, once userID has reached any limit in q.
func CheckQuota(ctx context.Context, l Ledger, userID string, q Quota) error {
	if l == nil || q.Unlimited() {
		return nil
	}
	t, err := l.Totals(ctx, userKey(userID))
	if err != nil {
		return fmt.Errorf("reading usage: %w", err)
	}
	switch {
	case q.MaxReviews > 0 && t.All.Reviews >= q.MaxReviews:
		return fmt.Errorf("%w: %d of %d reviews used", ErrQuotaExceeded, t.All.Reviews, q.MaxReviews)
	case q.MaxTokens > 0 && t.All.Total >= q.MaxTokens:
		return fmt.Errorf("%w: %d of %d tokens used", ErrQuotaExceeded, t.All.Total, q.MaxTokens)
	case q.MaxCost > 0 && t.All.Cost >= q.MaxCost:
		return fmt.Errorf("%w: $%.4f of $%.2f spent", ErrQuotaExceeded, t.All.Cost, q.MaxCost)
	}
	return nil
}

func userKey(id string) string {
	if id == "" {
		return AnonymousUser
	}
	return id
}
