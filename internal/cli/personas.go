package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/promptcoach/internal/persona"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List and inspect review personas",
}

var personasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		def := persona.Default
		if cfg, err := loadConfig(nil); err == nil {
			if v, err := cfg.PersonaVariant(); err == nil {
				def = v
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VARIANT\tNAME\tDIFFICULTY\tTEMP\tMAX TOKENS\t")
		for _, p := range persona.Profiles() {
			mark := ""
			if p.Variant == def {
				mark = "(default)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%d\t%s\n", p.Variant, p.Name, p.Difficulty, p.Temperature, p.MaxTokens, mark)
		}
		return tw.Flush()
	},
}

var personasShowCmd = &cobra.Command{
	Use:   "show <persona>",
	Short: "Show a persona's instructions and fallback review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := persona.Parse(args[0])
		if err != nil {
			return err
		}
		p, err := persona.ProfileFor(v)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", p.Name, p.Variant)
		fmt.Fprintf(out, "%s\n\n", p.Description)
		fmt.Fprintf(out, "Difficulty: %s\nTone: %s\n", p.Difficulty, p.Tone)
		fmt.Fprintf(out, "Temperature: %.1f, max tokens: %d\n", p.Temperature, p.MaxTokens)
		fmt.Fprintf(out, "Asks %d-%d questions and suggests %d-%d refinements\n\n",
			p.Questions[0], p.Questions[1], p.Refinements[0], p.Refinements[1])

		fmt.Fprintln(out, "Instructions:")
		for _, line := range strings.Split(strings.TrimSpace(p.Instructions), "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}

		fmt.Fprintf(out, "\nFallback review (rating %.0f):\n", p.Fallback.Rating)
		for _, q := range p.Fallback.Questions {
			fmt.Fprintf(out, "  ? %s\n", q)
		}
		for _, r := range p.Fallback.Refinements {
			fmt.Fprintf(out, "  - %s\n", r)
		}
		fmt.Fprintf(out, "  %s\n", p.Fallback.Feedback)
		return nil
	},
}

func init() {
	personasCmd.AddCommand(personasListCmd)
	personasCmd.AddCommand(personasShowCmd)
}
