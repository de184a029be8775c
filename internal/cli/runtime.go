package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dshills/promptcoach/internal/cache"
	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/review"
	"github.com/dshills/promptcoach/internal/usage"
)

// newRegistry builds the adapter registry. Tests swap it for one with stub
// constructors.
var newRegistry = func(l *zap.Logger) *providers.Registry {
	return providers.NewRegistry(providers.WithRegistryLogger(l))
}

// runtime is everything a command needs to run reviews.
type runtime struct {
	cfg    config.Config
	engine *review.Engine
	cache  cache.Store
	ledger usage.Ledger
	redis  *redis.Client
}

func newRuntime(cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	if usesRedis(cfg) {
		client, err := openRedis(cfg)
		if err != nil {
			return nil, err
		}
		rt.redis = client
	}

	store, err := openCache(cfg, rt.redis)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.cache = store

	switch cfg.Usage.Backend {
	case config.BackendRedis:
		rt.ledger = usage.NewRedis(rt.redis, time.Duration(cfg.Usage.TTLHours)*time.Hour)
	default:
		rt.ledger = usage.NewMemory()
	}

	rules, err := review.LoadRules(cfg.RulesFile)
	if err != nil {
		rt.Close()
		return nil, &providers.Error{Kind: providers.KindConfiguration, Op: "rules", Err: err}
	}

	retrier := providers.NewRetrier(cfg.RetryPolicy(), providers.WithRetryLogger(logger))
	rt.engine = review.NewEngine(newRegistry(logger),
		review.WithRetrier(retrier),
		review.WithCache(store),
		review.WithLedger(rt.ledger, cfg.Quota()),
		review.WithRedaction(cfg.Privacy.RedactSecrets),
		review.WithRules(rules),
		review.WithProcessOptions(cfg.ProcessOptions()),
		review.WithLogger(logger),
	)
	return rt, nil
}

// Close releases the redis connection pool, if any.
func (rt *runtime) Close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			logger.Warn("closing redis", zap.Error(err))
		}
	}
}

// options builds per-call review options from the config and flags.
func (rt *runtime) options() review.Options {
	return review.Options{
		Submission:      submissionFromFlags(),
		DisableAI:       rt.cfg.DisableAI,
		FallbackOnError: rt.cfg.FallbackOnError,
		SkipCache:       flagNoCache,
		UserID:          flagUser,
	}
}

func usesRedis(cfg config.Config) bool {
	return (cfg.Cache.Enabled && cfg.Cache.Backend == config.BackendRedis) || cfg.Usage.Backend == config.BackendRedis
}

func openRedis(cfg config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindConfiguration, Op: "redis", Err: fmt.Errorf("parsing redis url: %w", err)}
	}
	return redis.NewClient(opts), nil
}

func openCache(cfg config.Config, client *redis.Client) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return cache.Nop{}, nil
	}
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		return cache.NewRedis(client, time.Duration(cfg.Cache.TTLSeconds)*time.Second), nil
	default:
		c, err := cache.NewFile(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		return c, nil
	}
}

// pingRedis is the health check used by serve.
func pingRedis(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
