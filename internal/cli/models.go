package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/promptcoach/internal/providers"
)

const doctorTimeout = 30 * time.Second

var flagOffline bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers, models and pricing",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, v := range providers.Vendors() {
			keys := providers.EnvKeys(v)
			keyInfo := "no key required"
			if len(keys) > 0 {
				keyInfo = "key: " + strings.Join(keys, " or ")
				if providers.ValidateCredential(providers.Config{Vendor: v}) == nil {
					keyInfo += ", optional"
				}
			}
			fmt.Fprintf(out, "%s (%s):\n", v, keyInfo)
			def := providers.DefaultModel(v)
			for _, m := range providers.Models(v) {
				p := providers.PricingFor(v, m)
				mark := ""
				if m == def {
					mark = " (default)"
				}
				fmt.Fprintf(out, "  - %-28s in %s / out %s per 1M tokens%s\n",
					m, providers.FormatCost(p.InputPerMillion), providers.FormatCost(p.OutputPerMillion), mark)
			}
			fmt.Fprintln(out)
		}
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials",
	Long: "Check the configured provider's credential locally, then send one tiny live " +
		"request unless --offline is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return fail(cmd, err)
		}
		pc, err := cfg.ProviderConfig()
		if err != nil {
			return fail(cmd, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Checking %s (%s)...\n", pc.Vendor, pc.Model)

		if err := providers.ValidateCredential(pc); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
			exitCode = ExitConfigError
			return nil
		}
		fmt.Fprintln(out, "Credential format: ok")
		if flagOffline {
			return nil
		}

		adapter, err := newRegistry(logger).Get(pc)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
			exitCode = exitCodeFor(err)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		req, err := providers.NewReviewRequest("ping", "Respond with exactly: ok", "ping", 0, 10, nil)
		if err != nil {
			return err
		}
		resp, err := adapter.GenerateReview(ctx, req)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
			exitCode = exitCodeFor(err)
			return nil
		}

		fmt.Fprintf(out, "OK: %s is configured and responding (%dms)\n", adapter.Name(), resp.Latency.Milliseconds())
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	modelsDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
	modelsDoctorCmd.Flags().BoolVar(&flagOffline, "offline", false, "Only validate the credential format")
}
