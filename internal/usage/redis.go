package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "promptcoach:usage:"

// Redis is a Ledger shared between processes. Each user is one hash with
// global counters plus provider-scoped fields named "<provider>:<counter>".
type Redis struct {
	client      *redis.Client
	ttl         time.Duration
	retryConfig retry.Config
}

// NewRedis wraps client. A positive ttl expires a user's hash after that
// long without activity.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Record increments the user's counters in one transaction.
func (r *Redis) Record(ctx context.Context, e Event) error {
	key := keyPrefix + userKey(e.UserID)
	provider := e.Provider
	if provider == "" {
		provider = "unknown"
	}
	retryer := retry.New[struct{}](r.retryConfig)
	_, err := retryer.Do(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, scope := range []string{"", provider + ":"} {
				pipe.HIncrBy(ctx, key, scope+"reviews", 1)
				pipe.HIncrBy(ctx, key, scope+"input", int64(e.InputTokens))
				pipe.HIncrBy(ctx, key, scope+"output", int64(e.OutputTokens))
				pipe.HIncrByFloat(ctx, key, scope+"cost", e.Cost)
			}
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("recording usage for %s: %w", userKey(e.UserID), err)
	}
	return nil
}

// Totals reads the user's hash.
func (r *Redis) Totals(ctx context.Context, userID string) (Totals, error) {
	id := userKey(userID)
	fields, err := r.client.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return Totals{}, fmt.Errorf("reading usage for %s: %w", id, err)
	}
	return parseTotals(id, fields), nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func parseTotals(id string, fields map[string]string) Totals {
	t := Totals{UserID: id, ByProvider: make(map[string]TokenCounts)}
	for field, val := range fields {
		scope, counter := "", field
		if i := strings.LastIndexByte(field, ':'); i >= 0 {
			scope, counter = field[:i], field[i+1:]
		}
		tc := t.All
		if scope != "" {
			tc = t.ByProvider[scope]
		}
		applyCounter(&tc, counter, val)
		if scope == "" {
			t.All = tc
		} else {
			t.ByProvider[scope] = tc
		}
	}
	for k, tc := range t.ByProvider {
		tc.Total = tc.Input + tc.Output
		t.ByProvider[k] = tc
	}
	t.All.Total = t.All.Input + t.All.Output
	return t
}

func applyCounter(tc *TokenCounts, counter, val string) {
	switch counter {
	case "reviews":
		tc.Reviews, _ = strconv.ParseInt(val, 10, 64)
	case "input":
		tc.Input, _ = strconv.ParseInt(val, 10, 64)
	case "output":
		tc.Output, _ = strconv.ParseInt(val, 10, 64)
	case "cost":
		tc.Cost, _ = strconv.ParseFloat(val, 64)
	}
}
