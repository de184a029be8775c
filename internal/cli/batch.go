package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/output"
	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/review"
)

// batchEntry is one prompt in a batch file. Persona, provider and model
// default to the effective config.
type batchEntry struct {
	Label              string `yaml:"label"`
	Persona            string `yaml:"persona"`
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	persona.Submission `yaml:",inline"`
}

// batchFile is either a bare list of entries or {prompts: [...]}.
type batchFile struct {
	Prompts []batchEntry `yaml:"prompts"`
}

// loadBatch reads a YAML or JSON batch file. JSON is valid YAML, so one
// decoder handles both.
func loadBatch(path string) ([]batchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var entries []batchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		var doc batchFile
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("parsing batch file %s: %w", path, derr)
		}
		entries = doc.Prompts
	}
	if len(entries) == 0 {
		return nil, errors.New("batch file has no prompts")
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			return nil, fmt.Errorf("batch entry %d has no prompt", i+1)
		}
	}
	return entries, nil
}

// buildJobs resolves each entry against cfg.
func buildJobs(entries []batchEntry, cfg config.Config, base review.Options) ([]review.Job, error) {
	jobs := make([]review.Job, len(entries))
	for i, e := range entries {
		variant, err := cfg.PersonaVariant()
		if e.Persona != "" {
			variant, err = persona.Parse(e.Persona)
		}
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i+1, err)
		}

		provider, model := cfg.Provider, cfg.Model
		if e.Provider != "" {
			provider, model = e.Provider, ""
		}
		if e.Model != "" {
			model = e.Model
		}
		v, err := providers.ParseVendor(provider)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i+1, err)
		}

		opts := base
		opts.Submission = e.Submission
		label := e.Label
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		jobs[i] = review.Job{
			Label:   label,
			Prompt:  e.Text,
			Persona: variant,
			Config:  cfg.ProviderConfigFor(v, model),
			Options: opts,
		}
	}
	return jobs, nil
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Review every prompt in a YAML or JSON file",
	Long: "Review a list of prompts concurrently. Each entry has a prompt and optional " +
		"label, persona, provider, model, description, whatILearned, whatWentWell, " +
		"reflections, tags and context.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := loadBatch(args[0])
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

		jobs, err := buildJobs(entries, cfg, rt.options())
		if err != nil {
			return fail(cmd, err)
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		outcomes, err := rt.engine.ReviewMany(ctx, jobs, cfg.Concurrency)
		if err != nil {
			return fail(cmd, err)
		}

		err = emit(cmd, cfg.Format,
			func() error { return output.WriteBatch(outcomes, cfg.Format, flagOut) },
			func(w output.Writer, out io.Writer) error { return w.WriteBatch(out, outcomes) },
		)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		for _, o := range outcomes {
			if o.Err != nil {
				exitCode = exitCodeFor(o.Err)
				break
			}
		}
		return nil
	},
}

func init() {
	addReviewFlags(batchCmd)
	batchCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Reviews in flight at once (default from config)")
}
