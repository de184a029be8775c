package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/redact"
)

const version = "0.3.0"

// Exit codes.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitRuntimeError = 4
	ExitRetryLater   = 5
)

// Global flags
var (
	flagConfig   string
	flagVerbose  bool
	flagLogLevel string
)

var (
	logger   = zap.NewNop()
	logLevel = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

var rootCmd = &cobra.Command{
	Use:   "promptcoach",
	Short: "AI prompt review CLI",
	Long: "promptcoach reviews AI prompts with a skill-level persona and returns ratings, " +
		"clarifying questions, refinements and feedback.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Run executes the root command and returns an exit code.
func Run() int {
	return execute(os.Args[1:])
}

func execute(args []string) int {
	exitCode = ExitSuccess
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// initLogger builds the production logger on stderr. The level comes from
// --verbose, then --log-level, then the config file once it is loaded.
func initLogger() error {
	switch {
	case flagVerbose:
		logLevel.SetLevel(zapcore.DebugLevel)
	case flagLogLevel != "":
		lvl, err := zapcore.ParseLevel(flagLogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logLevel.SetLevel(lvl)
	}

	zc := zap.NewProductionConfig()
	zc.Level = logLevel
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger = l
	return nil
}

// loadConfig loads the effective configuration with flag overrides applied.
// Errors are configuration errors.
func loadConfig(overrides map[string]string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFrom(flagConfig, overrides)
	} else {
		cfg, err = config.Load(overrides)
	}
	if err != nil {
		if providers.IsConfigurationError(err) {
			return config.Config{}, err
		}
		return config.Config{}, &providers.Error{Kind: providers.KindConfiguration, Op: "config", Err: err}
	}
	if !flagVerbose && flagLogLevel == "" {
		if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			logLevel.SetLevel(lvl)
		}
	}
	return cfg, nil
}

// exitCodeFor maps a failure to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	kind := providers.KindOf(err)
	if kind == providers.KindRetriesExhausted {
		kind = providers.KindOf(providers.Cause(err))
	}
	switch kind {
	case providers.KindConfiguration:
		return ExitConfigError
	case providers.KindRateLimit, providers.KindTimeout:
		return ExitRetryLater
	}
	return ExitRuntimeError
}

// fail reports err on stderr and records its exit code. The returned nil
// keeps cobra from printing usage for runtime failures.
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", redact.Secrets(err.Error()))
	if raw, ok := providers.RawText(err); ok && flagVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Raw response:\n%s\n", redact.Secrets(raw))
	}
	switch providers.KindOf(err) {
	case providers.KindRateLimit, providers.KindTimeout, providers.KindRetriesExhausted:
		fmt.Fprintln(cmd.ErrOrStderr(), "The provider is busy or slow; try again shortly.")
	}
	exitCode = exitCodeFor(err)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print promptcoach version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "promptcoach version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: platform config dir)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging and raw responses on parse failures")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
