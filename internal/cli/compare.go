package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/review"
)

var (
	flagPersonas string
	flagModels   string
)

var compareCmd = &cobra.Command{
	Use:   "compare [prompt]",
	Short: "Review one prompt with several personas or models",
	Long: "Review the same prompt once per persona (default: all four) with the configured " +
		"provider, or once per provider:model pair with --models. Ratings are averaged and " +
		"refinements that several reviewers agree on are listed first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := readPrompt(cmd, args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return fail(cmd, err)
		}
		warnRedaction(cmd, cfg)

		rt, err := newRuntime(cfg)
		if err != nil {
			return fail(cmd, err)
		}
		defer rt.Close()

		ctx, stop := signalContext(cmd)
		defer stop()

		var cmp *review.Comparison
		if flagModels != "" {
			variant, err := cfg.PersonaVariant()
			if err != nil {
				return fail(cmd, err)
			}
			var cfgs []providers.Config
			for _, spec := range splitComma(flagModels) {
				v, model, err := review.ParseModelSpec(spec)
				if err != nil {
					return err
				}
				cfgs = append(cfgs, cfg.ProviderConfigFor(v, model))
			}
			cmp, err = rt.engine.CompareProviders(ctx, prompt, variant, cfgs, rt.options())
			if err != nil {
				return fail(cmd, err)
			}
		} else {
			variants, err := parseVariants(flagPersonas)
			if err != nil {
				return err
			}
			pc, err := cfg.ProviderConfig()
			if err != nil {
				return fail(cmd, err)
			}
			cmp, err = rt.engine.ComparePersonas(ctx, prompt, variants, pc, rt.options())
			if err != nil {
				return fail(cmd, err)
			}
		}
		return finishComparison(cmd, cfg, cmp)
	},
}

// parseVariants parses a comma-separated persona list. Empty means all.
func parseVariants(s string) ([]persona.Variant, error) {
	names := splitComma(s)
	if len(names) == 0 {
		return persona.Variants(), nil
	}
	out := make([]persona.Variant, 0, len(names))
	for _, n := range names {
		v, err := persona.Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func init() {
	addReviewFlags(compareCmd)
	compareCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read the prompt from a file")
	compareCmd.Flags().StringVar(&flagPersonas, "personas", "", "Personas to compare (comma-separated, default all)")
	compareCmd.Flags().StringVar(&flagModels, "models", "", "Compare provider:model pairs instead of personas (comma-separated)")
}
