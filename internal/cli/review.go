package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/output"
	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/review"
)

// Shared review flags
var (
	flagPersona     string
	flagProvider    string
	flagModel       string
	flagCompare     string
	flagFormat      string
	flagOut         string
	flagFile        string
	flagRules       string
	flagUser        string
	flagNoAI        bool
	flagFallback    bool
	flagNoCache     bool
	flagNoRedact    bool
	flagConcurrency int

	flagDescription string
	flagLearned     string
	flagWentWell    string
	flagReflections string
	flagTags        string
)

var errNoPrompt = errors.New("no prompt given: pass it as an argument, with --file, or on stdin")

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagPersona, "persona", "p", "", "Persona (beginner, intermediate, advanced, interviewer)")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path")
	cmd.Flags().StringVar(&flagUser, "user", "", "User ID for usage accounting")
	cmd.Flags().BoolVar(&flagNoAI, "no-ai", false, "Return the persona's fallback review without calling a provider")
	cmd.Flags().BoolVar(&flagFallback, "fallback-on-error", false, "Return a fallback review instead of failing")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Skip the response cache lookup")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")

	cmd.Flags().StringVar(&flagDescription, "description", "", "What the prompt is for")
	cmd.Flags().StringVar(&flagLearned, "learned", "", "What you learned writing it")
	cmd.Flags().StringVar(&flagWentWell, "went-well", "", "What went well")
	cmd.Flags().StringVar(&flagReflections, "reflections", "", "Other reflections")
	cmd.Flags().StringVar(&flagTags, "tags", "", "Tags (comma-separated)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagPersona != "" {
		m["persona"] = flagPersona
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagRules != "" {
		m["rulesFile"] = flagRules
	}
	if flagCompare != "" {
		m["compare"] = flagCompare
	}
	if flagConcurrency > 0 {
		m["concurrency"] = fmt.Sprintf("%d", flagConcurrency)
	}
	if flagNoAI {
		m["disableAI"] = "true"
	}
	if flagFallback {
		m["fallbackOnError"] = "true"
	}
	if flagNoRedact {
		m["privacy.redactSecrets"] = "false"
	}
	return m
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func submissionFromFlags() persona.Submission {
	return persona.Submission{
		Description:  flagDescription,
		WhatILearned: flagLearned,
		WhatWentWell: flagWentWell,
		Reflections:  flagReflections,
		Tags:         splitComma(flagTags),
	}
}

// readPrompt takes the prompt from --file, the arguments, or stdin when
// there are no arguments or the only one is "-".
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	var text string
	switch {
	case flagFile != "":
		data, err := os.ReadFile(flagFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		text = string(data)
	case len(args) > 0 && !(len(args) == 1 && args[0] == "-"):
		text = strings.Join(args, " ")
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errNoPrompt
	}
	return text, nil
}

// signalContext cancels on SIGINT or SIGTERM so in-flight attempts and
// backoff sleeps stop promptly.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// emit writes through the format's writer to --out or the command's stdout.
func emit(cmd *cobra.Command, format string, toFile func() error, fn func(output.Writer, io.Writer) error) error {
	if flagOut != "" {
		return toFile()
	}
	w, err := output.GetWriter(format)
	if err != nil {
		return err
	}
	return fn(w, cmd.OutOrStdout())
}

func warnRedaction(cmd *cobra.Command, cfg config.Config) {
	if !cfg.Privacy.RedactSecrets {
		fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: secret redaction is disabled")
	}
}

func runReview(cmd *cobra.Command, args []string) error {
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

	variant, err := cfg.PersonaVariant()
	if err != nil {
		return fail(cmd, err)
	}

	if len(cfg.Compare) >= 2 {
		cfgs, err := cfg.CompareConfigs()
		if err != nil {
			return fail(cmd, err)
		}
		cmp, err := rt.engine.CompareProviders(ctx, prompt, variant, cfgs, rt.options())
		if err != nil {
			return fail(cmd, err)
		}
		return finishComparison(cmd, cfg, cmp)
	}

	pc, err := cfg.ProviderConfig()
	if err != nil {
		return fail(cmd, err)
	}
	res, err := rt.engine.Review(ctx, prompt, variant, pc, rt.options())
	if err != nil {
		return fail(cmd, err)
	}

	err = emit(cmd, cfg.Format,
		func() error { return output.WriteResult(&res, cfg.Format, flagOut) },
		func(w output.Writer, out io.Writer) error { return w.WriteResult(out, &res) },
	)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
	}
	return nil
}

// finishComparison prints a comparison and sets the exit code from the
// first failure when every reviewer failed.
func finishComparison(cmd *cobra.Command, cfg config.Config, cmp *review.Comparison) error {
	failed := 0
	var firstErr error
	for _, o := range cmp.Outcomes {
		if o.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = o.Err
			}
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Compare mode: %d reviewers, %d failed, %d agreed refinements\n",
		len(cmp.Outcomes), failed, len(cmp.Consensus))

	err := emit(cmd, cfg.Format,
		func() error { return output.WriteComparison(cmp, cfg.Format, flagOut) },
		func(w output.Writer, out io.Writer) error { return w.WriteComparison(out, cmp) },
	)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return nil
	}
	if len(cmp.Outcomes) > 0 && failed == len(cmp.Outcomes) {
		exitCode = exitCodeFor(firstErr)
	}
	return nil
}

var reviewCmd = &cobra.Command{
	Use:   "review [prompt]",
	Short: "Review a prompt",
	Long: "Review a prompt with the configured persona and provider. The prompt is read " +
		"from the arguments, --file, or stdin. With --compare, several provider:model " +
		"pairs review the same prompt.",
	RunE: runReview,
}

func init() {
	addReviewFlags(reviewCmd)
	reviewCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read the prompt from a file")
	reviewCmd.Flags().StringVar(&flagCompare, "compare", "", "Compare mode: comma-separated provider:model pairs")
}
