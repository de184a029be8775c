package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/review"
	"github.com/dshills/promptcoach/internal/usage"
)

const appName = "promptcoach"

// Config represents the promptcoach configuration.
type Config struct {
	Provider string   `json:"provider" yaml:"provider"`
	Model    string   `json:"model,omitempty" yaml:"model,omitempty"`
	Persona  string   `json:"persona" yaml:"persona"`
	Compare  []string `json:"compare,omitempty" yaml:"compare,omitempty"`
	Format   string   `json:"format" yaml:"format"`
	LogLevel string   `json:"logLevel" yaml:"logLevel"`
	// DisableAI returns persona fallback reviews without calling a provider.
	DisableAI       bool          `json:"disableAI" yaml:"disableAI"`
	FallbackOnError bool          `json:"fallbackOnError" yaml:"fallbackOnError"`
	Concurrency     int           `json:"concurrency" yaml:"concurrency"`
	RulesFile       string        `json:"rulesFile,omitempty" yaml:"rulesFile,omitempty"`
	OllamaHost      string        `json:"ollamaHost,omitempty" yaml:"ollamaHost,omitempty"`
	Limits          LimitsConfig  `json:"limits" yaml:"limits"`
	Retry           RetryConfig   `json:"retry" yaml:"retry"`
	Cache           CacheConfig   `json:"cache" yaml:"cache"`
	Usage           UsageConfig   `json:"usage" yaml:"usage"`
	Privacy         PrivacyConfig `json:"privacy" yaml:"privacy"`
	Redis           RedisConfig   `json:"redis" yaml:"redis"`
	Server          ServerConfig  `json:"server" yaml:"server"`

	// APIKeys holds credentials by provider. They come from the environment
	// only and are never written to disk.
	APIKeys map[providers.Vendor]string `json:"-" yaml:"-"`
}

// LimitsConfig caps the processed review.
type LimitsConfig struct {
	MaxQuestions   int `json:"maxQuestions" yaml:"maxQuestions"`
	MaxRefinements int `json:"maxRefinements" yaml:"maxRefinements"`
	FeedbackRunes  int `json:"feedbackRunes" yaml:"feedbackRunes"`
}

// RetryConfig controls provider retries.
type RetryConfig struct {
	MaxAttempts           int `json:"maxAttempts" yaml:"maxAttempts"`
	MaxParseAttempts      int `json:"maxParseAttempts" yaml:"maxParseAttempts"`
	BaseDelayMs           int `json:"baseDelayMs" yaml:"baseDelayMs"`
	MaxDelayMs            int `json:"maxDelayMs" yaml:"maxDelayMs"`
	AttemptTimeoutSeconds int `json:"attemptTimeoutSeconds" yaml:"attemptTimeoutSeconds"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Backend    string `json:"backend" yaml:"backend"`
	Dir        string `json:"dir,omitempty" yaml:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds" yaml:"ttlSeconds"`
}

// UsageConfig selects the usage ledger and per-user quota. Zero limits mean
// unlimited.
type UsageConfig struct {
	Backend    string  `json:"backend" yaml:"backend"`
	TTLHours   int     `json:"ttlHours,omitempty" yaml:"ttlHours,omitempty"`
	MaxReviews int64   `json:"maxReviews,omitempty" yaml:"maxReviews,omitempty"`
	MaxTokens  int64   `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	MaxCost    float64 `json:"maxCost,omitempty" yaml:"maxCost,omitempty"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool `json:"redactSecrets" yaml:"redactSecrets"`
}

// RedisConfig locates the shared redis used by the redis cache and ledger.
type RedisConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ServerConfig configures `promptcoach serve`.
type ServerConfig struct {
	Addr                string `json:"addr" yaml:"addr"`
	ReadTimeoutSeconds  int    `json:"readTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds" yaml:"writeTimeoutSeconds"`
	BodyLimitBytes      int    `json:"bodyLimitBytes" yaml:"bodyLimitBytes"`
}

// Backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:    string(providers.VendorAnthropic),
		Persona:     string(persona.Default),
		Format:      "text",
		LogLevel:    "warn",
		Concurrency: review.DefaultConcurrency,
		Limits: LimitsConfig{
			MaxQuestions:   review.DefaultMaxQuestions,
			MaxRefinements: review.DefaultMaxRefinements,
			FeedbackRunes:  review.DefaultFeedbackLimit,
		},
		Retry: RetryConfig{
			MaxAttempts:           3,
			MaxParseAttempts:      2,
			BaseDelayMs:           2000,
			MaxDelayMs:            30000,
			AttemptTimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    BackendFile,
			TTLSeconds: 86400,
		},
		Usage: UsageConfig{
			Backend:  BackendMemory,
			TTLHours: 24 * 30,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
		},
		Server: ServerConfig{
			Addr:                "127.0.0.1:8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 180,
			BodyLimitBytes:      1 << 20,
		},
		APIKeys: map[providers.Vendor]string{},
	}
}

// ConfigDir returns the platform-appropriate config directory for promptcoach.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the config file. PROMPTCOACH_CONFIG
// wins; otherwise an existing config.yaml or config.yml is preferred over
// config.json.
func ConfigPath() (string, error) {
	if p := os.Getenv("PROMPTCOACH_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return filepath.Join(dir, "config.json"), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decodeInto overlays the file at path onto cfg. Keys missing from the file
// keep their current values. A missing file is not an error.
func decodeInto(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// LoadFile loads only the config file. Returns zero Config and nil error if
// the file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := decodeInto(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFileFrom overlays the file at path onto the defaults without reading
// the environment, for editing a config file in place.
func LoadFileFrom(path string) (Config, error) {
	cfg := Default()
	if err := decodeInto(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config to the config file, as YAML or JSON by extension.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg to path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Load builds the effective config by merging: defaults <- file <- .env/env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path, overrides)
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string, overrides map[string]string) (Config, error) {
	cfg := Default()
	if err := decodeInto(&cfg, path); err != nil {
		return Config{}, err
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = map[providers.Vendor]string{}
	}
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
// With no arguments it reads ./.env.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// envVars maps environment variables to config keys understood by SetField.
// Later entries win, so the PROMPTCOACH_ names override the short aliases.
var envVars = []struct{ env, key string }{
	{"AI_PROVIDER", "provider"},
	{"PROMPTCOACH_PROVIDER", "provider"},
	{"PROMPTCOACH_MODEL", "model"},
	{"DEFAULT_PERSONA", "persona"},
	{"PROMPTCOACH_PERSONA", "persona"},
	{"PROMPTCOACH_FORMAT", "format"},
	{"PROMPTCOACH_LOG_LEVEL", "logLevel"},
	{"PROMPTCOACH_RULES_FILE", "rulesFile"},
	{"PROMPTCOACH_CONCURRENCY", "concurrency"},
	{"PROMPTCOACH_FALLBACK_ON_ERROR", "fallbackOnError"},
	{"PROMPTCOACH_MAX_ATTEMPTS", "retry.maxAttempts"},
	{"PROMPTCOACH_CACHE", "cache.enabled"},
	{"PROMPTCOACH_CACHE_BACKEND", "cache.backend"},
	{"PROMPTCOACH_CACHE_DIR", "cache.dir"},
	{"PROMPTCOACH_CACHE_TTL", "cache.ttlSeconds"},
	{"PROMPTCOACH_USAGE_BACKEND", "usage.backend"},
	{"PROMPTCOACH_MAX_REVIEWS", "usage.maxReviews"},
	{"PROMPTCOACH_MAX_TOKENS", "usage.maxTokens"},
	{"PROMPTCOACH_MAX_COST", "usage.maxCost"},
	{"PROMPTCOACH_REDACT_SECRETS", "privacy.redactSecrets"},
	{"PROMPTCOACH_SERVER_ADDR", "server.addr"},
	{"OLLAMA_HOST", "ollamaHost"},
	{"REDIS_URL", "redis.url"},
}

func mergeEnv(cfg *Config) error {
	for _, ev := range envVars {
		v := os.Getenv(ev.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, ev.key, v); err != nil {
			return fmt.Errorf("%s: %w", ev.env, err)
		}
	}
	// USE_AI_REVIEW is the inverse of disableAI.
	for _, name := range []string{"USE_AI_REVIEW", "PROMPTCOACH_USE_AI"} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", name, err)
		}
		cfg.DisableAI = !on
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = map[providers.Vendor]string{}
	}
	for _, v := range providers.Vendors() {
		for _, name := range providers.EnvKeys(v) {
			if key := strings.TrimSpace(os.Getenv(name)); key != "" {
				cfg.APIKeys[v] = key
				break
			}
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, v := range overrides {
		if v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the keys accepted by SetField.
func Keys() []string {
	return []string{
		"provider", "model", "persona", "format", "logLevel", "compare", "disableAI",
		"fallbackOnError", "concurrency", "rulesFile", "ollamaHost",
		"limits.maxQuestions", "limits.maxRefinements", "limits.feedbackRunes",
		"retry.maxAttempts", "retry.maxParseAttempts", "retry.baseDelayMs", "retry.maxDelayMs",
		"retry.attemptTimeoutSeconds",
		"cache.enabled", "cache.backend", "cache.dir", "cache.ttlSeconds",
		"usage.backend", "usage.ttlHours", "usage.maxReviews", "usage.maxTokens", "usage.maxCost",
		"privacy.redactSecrets", "redis.url", "server.addr",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "persona":
		cfg.Persona = value
	case "format":
		cfg.Format = value
	case "logLevel":
		cfg.LogLevel = value
	case "compare":
		cfg.Compare = splitList(value)
	case "disableAI":
		return setBool(&cfg.DisableAI, key, value)
	case "fallbackOnError":
		return setBool(&cfg.FallbackOnError, key, value)
	case "concurrency":
		return setInt(&cfg.Concurrency, key, value)
	case "rulesFile":
		cfg.RulesFile = value
	case "ollamaHost":
		cfg.OllamaHost = value
	case "limits.maxQuestions":
		return setInt(&cfg.Limits.MaxQuestions, key, value)
	case "limits.maxRefinements":
		return setInt(&cfg.Limits.MaxRefinements, key, value)
	case "limits.feedbackRunes":
		return setInt(&cfg.Limits.FeedbackRunes, key, value)
	case "retry.maxAttempts":
		return setInt(&cfg.Retry.MaxAttempts, key, value)
	case "retry.maxParseAttempts":
		return setInt(&cfg.Retry.MaxParseAttempts, key, value)
	case "retry.baseDelayMs":
		return setInt(&cfg.Retry.BaseDelayMs, key, value)
	case "retry.maxDelayMs":
		return setInt(&cfg.Retry.MaxDelayMs, key, value)
	case "retry.attemptTimeoutSeconds":
		return setInt(&cfg.Retry.AttemptTimeoutSeconds, key, value)
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.backend":
		cfg.Cache.Backend = value
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "usage.backend":
		cfg.Usage.Backend = value
	case "usage.ttlHours":
		return setInt(&cfg.Usage.TTLHours, key, value)
	case "usage.maxReviews":
		return setInt64(&cfg.Usage.MaxReviews, key, value)
	case "usage.maxTokens":
		return setInt64(&cfg.Usage.MaxTokens, key, value)
	case "usage.maxCost":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", key, err)
		}
		cfg.Usage.MaxCost = f
	case "privacy.redactSecrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "redis.url":
		cfg.Redis.URL = value
	case "server.addr":
		cfg.Server.Addr = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key, value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks enumerated values and cross-field requirements.
func (c Config) Validate() error {
	if _, err := providers.ParseVendor(c.Provider); err != nil {
		return err
	}
	if _, err := persona.Parse(c.Persona); err != nil {
		return err
	}
	switch c.Format {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("unknown format %q: want text, json or markdown", c.Format)
	}
	for _, spec := range c.Compare {
		if _, _, err := review.ParseModelSpec(spec); err != nil {
			return err
		}
	}
	switch c.Cache.Backend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q: want file or redis", c.Cache.Backend)
	}
	switch c.Usage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown usage backend %q: want memory or redis", c.Usage.Backend)
	}
	needRedis := (c.Cache.Enabled && c.Cache.Backend == BackendRedis) || c.Usage.Backend == BackendRedis
	if needRedis && c.Redis.URL == "" {
		return errors.New("redis backend selected but redis.url (REDIS_URL) is not set")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// ProviderConfig resolves the configured provider, model and credential.
func (c Config) ProviderConfig() (providers.Config, error) {
	v, err := providers.ParseVendor(c.Provider)
	if err != nil {
		return providers.Config{}, err
	}
	return c.ProviderConfigFor(v, c.Model), nil
}

// ProviderConfigFor builds a provider config for v and model using the
// configured credentials and endpoints. An empty model means the default.
func (c Config) ProviderConfigFor(v providers.Vendor, model string) providers.Config {
	pc := providers.Config{
		Vendor:  v,
		APIKey:  c.APIKeys[v],
		Model:   model,
		Timeout: time.Duration(c.Retry.AttemptTimeoutSeconds) * time.Second,
	}
	if v == providers.VendorOllama {
		pc.BaseURL = c.OllamaHost
	}
	return pc.Normalize()
}

// CompareConfigs resolves the compare list into provider configs.
func (c Config) CompareConfigs() ([]providers.Config, error) {
	out := make([]providers.Config, 0, len(c.Compare))
	for _, spec := range c.Compare {
		v, model, err := review.ParseModelSpec(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, c.ProviderConfigFor(v, model))
	}
	return out, nil
}

// PersonaVariant returns the configured default persona.
func (c Config) PersonaVariant() (persona.Variant, error) {
	return persona.Parse(c.Persona)
}

// RetryPolicy converts the retry settings. Unset values keep the defaults.
func (c Config) RetryPolicy() providers.Policy {
	p := providers.DefaultPolicy()
	r := c.Retry
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.MaxParseAttempts > 0 {
		p.MaxParseAttempts = r.MaxParseAttempts
	}
	if r.BaseDelayMs > 0 {
		p.BaseDelay = time.Duration(r.BaseDelayMs) * time.Millisecond
	}
	if r.MaxDelayMs > 0 {
		p.MaxDelay = time.Duration(r.MaxDelayMs) * time.Millisecond
	}
	if r.AttemptTimeoutSeconds > 0 {
		p.AttemptTimeout = time.Duration(r.AttemptTimeoutSeconds) * time.Second
	}
	return p
}

// ProcessOptions converts the result caps.
func (c Config) ProcessOptions() review.ProcessOptions {
	return review.ProcessOptions{
		MaxQuestions:   c.Limits.MaxQuestions,
		MaxRefinements: c.Limits.MaxRefinements,
		FeedbackLimit:  c.Limits.FeedbackRunes,
	}
}

// Quota converts the usage limits.
func (c Config) Quota() usage.Quota {
	return usage.Quota{
		MaxReviews: c.Usage.MaxReviews,
		MaxTokens:  c.Usage.MaxTokens,
		MaxCost:    c.Usage.MaxCost,
	}
}
