package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recorded token usage and estimated cost",
}

var usageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show usage totals for a user",
	Long: "Show usage totals from the redis ledger. The memory ledger only lives as long " +
		"as one process; query a running server with GET /v1/usage instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return fail(cmd, err)
		}
		if cfg.Usage.Backend != config.BackendRedis {
			fmt.Fprintln(cmd.ErrOrStderr(), "Usage is kept in memory (usage.backend=memory); nothing is recorded between runs.")
			return nil
		}

		client, err := openRedis(cfg)
		if err != nil {
			return fail(cmd, err)
		}
		rt := runtime{redis: client}
		defer rt.Close()

		id := flagUser
		if id == "" {
			id = usage.AnonymousUser
		}
		totals, err := usage.NewRedis(client, 0).Totals(cmd.Context(), id)
		if err != nil {
			return fail(cmd, fmt.Errorf("reading usage: %w", err))
		}

		if cfg.Format == "json" {
			data, err := json.MarshalIndent(map[string]any{"usage": totals, "quota": cfg.Quota()}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		writeTotals(cmd, totals, cfg.Quota())
		return nil
	},
}

func writeTotals(cmd *cobra.Command, t usage.Totals, q usage.Quota) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage for %s\n", t.UserID)
	fmt.Fprintf(out, "  reviews %d | tokens %d in / %d out | cost %s\n",
		t.All.Reviews, t.All.Input, t.All.Output, providers.FormatCost(t.All.Cost))

	names := make([]string, 0, len(t.ByProvider))
	for name := range t.ByProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := t.ByProvider[name]
		fmt.Fprintf(out, "  %-10s reviews %d | tokens %d | cost %s\n", name, c.Reviews, c.Total, providers.FormatCost(c.Cost))
	}

	if q.Unlimited() {
		return
	}
	fmt.Fprint(out, "Quota:")
	if q.MaxReviews > 0 {
		fmt.Fprintf(out, " %d/%d reviews", t.All.Reviews, q.MaxReviews)
	}
	if q.MaxTokens > 0 {
		fmt.Fprintf(out, " %d/%d tokens", t.All.Total, q.MaxTokens)
	}
	if q.MaxCost > 0 {
		fmt.Fprintf(out, " %s/%s", providers.FormatCost(t.All.Cost), providers.FormatCost(q.MaxCost))
	}
	fmt.Fprintln(out)
}

func init() {
	usageCmd.AddCommand(usageShowCmd)
	usageShowCmd.Flags().StringVar(&flagUser, "user", "", "User ID (default anonymous)")
}
