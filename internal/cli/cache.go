package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/promptcoach/internal/cache"
	"github.com/dshills/promptcoach/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

// withCache opens the configured store even when caching is disabled, so
// stale entries can still be inspected and cleared.
func withCache(cmd *cobra.Command, fn func(cache.Store) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fail(cmd, err)
	}
	cfg.Cache.Enabled = true

	var rt runtime
	if cfg.Cache.Backend == config.BackendRedis {
		if rt.redis, err = openRedis(cfg); err != nil {
			return fail(cmd, err)
		}
		defer rt.Close()
	}
	store, err := openCache(cfg, rt.redis)
	if err != nil {
		return fail(cmd, err)
	}
	if err := fn(store); err != nil {
		return fail(cmd, err)
	}
	return nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached review responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c cache.Store) error {
			if err := c.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"show"},
	Short:   "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c cache.Store) error {
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading cache stats: %w", err)
			}
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}
