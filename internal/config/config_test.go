package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptcoach/internal/providers"
)

// isolate clears every variable the loader reads and points the config
// directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, ev := range envVars {
		t.Setenv(ev.env, "")
	}
	for _, name := range []string{"USE_AI_REVIEW", "PROMPTCOACH_USE_AI", "PROMPTCOACH_CONFIG"} {
		t.Setenv(name, "")
	}
	for _, v := range providers.Vendors() {
		for _, name := range providers.EnvKeys(v) {
			t.Setenv(name, "")
		}
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, appName)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "anthropic" {
		t.Errorf("Default provider = %q, want %q", cfg.Provider, "anthropic")
	}
	if cfg.Persona != "beginner" {
		t.Errorf("Default persona = %q, want %q", cfg.Persona, "beginner")
	}
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.Limits.MaxQuestions != 5 || cfg.Limits.MaxRefinements != 8 || cfg.Limits.FeedbackRunes != 500 {
		t.Errorf("Default limits = %+v", cfg.Limits)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.MaxParseAttempts != 2 {
		t.Errorf("Default retry = %+v", cfg.Retry)
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
	if !cfg.Cache.Enabled || cfg.Cache.Backend != BackendFile {
		t.Errorf("Default cache = %+v", cfg.Cache)
	}
	if cfg.DisableAI {
		t.Error("live reviews should be on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	isolate(t)
	t.Setenv("AI_PROVIDER", "claude")
	t.Setenv("PROMPTCOACH_PROVIDER", "openai")
	t.Setenv("PROMPTCOACH_MODEL", "gpt-4o")
	t.Setenv("DEFAULT_PERSONA", "advanced")
	t.Setenv("PROMPTCOACH_FORMAT", "json")
	t.Setenv("PROMPTCOACH_MAX_ATTEMPTS", "5")
	t.Setenv("PROMPTCOACH_MAX_TOKENS", "100000")
	t.Setenv("USE_AI_REVIEW", "false")
	t.Setenv("OPENAI_API_KEY", "  sk-test-0123456789abcdefghij ")
	t.Setenv("GOOGLE_API_KEY", "AIzaTest0123456789abcdefghij")
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg := Default()
	require.NoError(t, mergeEnv(&cfg))

	assert.Equal(t, "openai", cfg.Provider, "PROMPTCOACH_ name wins over the alias")
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "advanced", cfg.Persona)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, int64(100000), cfg.Usage.MaxTokens)
	assert.True(t, cfg.DisableAI)
	assert.Equal(t, "sk-test-0123456789abcdefghij", cfg.APIKeys[providers.VendorOpenAI])
	assert.Equal(t, "AIzaTest0123456789abcdefghij", cfg.APIKeys[providers.VendorGemini])
	assert.Equal(t, "http://gpu-box:11434", cfg.OllamaHost)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestMergeEnv_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("PROMPTCOACH_MAX_ATTEMPTS", "lots")
	cfg := Default()
	err := mergeEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROMPTCOACH_MAX_ATTEMPTS")

	isolate(t)
	t.Setenv("USE_AI_REVIEW", "maybe")
	cfg = Default()
	assert.Error(t, mergeEnv(&cfg))
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	yamlCfg := `provider: openai
model: gpt-4-turbo
persona: intermediate
cache:
  enabled: false
privacy:
  redactSecrets: false
limits:
  maxQuestions: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlCfg), 0o600))
	t.Setenv("PROMPTCOACH_MODEL", "gpt-4o")

	cfg, err := Load(map[string]string{"persona": "interviewer", "format": ""})
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider, "from file")
	assert.Equal(t, "gpt-4o", cfg.Model, "env beats file")
	assert.Equal(t, "interviewer", cfg.Persona, "flag beats file")
	assert.Equal(t, "text", cfg.Format, "empty override is ignored")
	assert.False(t, cfg.Cache.Enabled, "file can switch a default-on bool off")
	assert.False(t, cfg.Privacy.RedactSecrets)
	assert.Equal(t, 3, cfg.Limits.MaxQuestions)
	assert.Equal(t, 8, cfg.Limits.MaxRefinements, "untouched keys keep defaults")
}

func TestLoad_JSONFileAndExplicitPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "coach.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":"ollama","ollamaHost":"http://localhost:1234"}`), 0o600))
	t.Setenv("PROMPTCOACH_CONFIG", path)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider)

	pc, err := cfg.ProviderConfig()
	require.NoError(t, err)
	assert.Equal(t, providers.VendorOllama, pc.Vendor)
	assert.Equal(t, "http://localhost:1234", pc.BaseURL)
	assert.Equal(t, "llama3.1", pc.Model)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"provider":`), 0o600))
	_, err := Load(nil)
	assert.ErrorContains(t, err, "parsing config file")

	isolate(t)
	_, err = Load(map[string]string{"nope": "x"})
	assert.ErrorContains(t, err, "unknown config key")

	isolate(t)
	_, err = Load(map[string]string{"persona": "wizard"})
	assert.True(t, providers.IsConfigurationError(err))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Provider, cfg.Provider)
	assert.NotNil(t, cfg.APIKeys)
}

func TestLoadDotEnv(t *testing.T) {
	const name = "PROMPTCOACH_DOTENV_CHECK"
	os.Unsetenv(name)
	t.Cleanup(func() { os.Unsetenv(name) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(name+"=from-dotenv\n"), 0o600))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv(name))

	// Existing variables are not overridden.
	os.Setenv(name, "from-shell")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-shell", os.Getenv(name))
}

func TestSetField(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(Config) bool
	}{
		{"provider", "gemini", func(c Config) bool { return c.Provider == "gemini" }},
		{"compare", "openai:gpt-4o, anthropic:claude-3-haiku-20240307,", func(c Config) bool {
			return len(c.Compare) == 2 && c.Compare[1] == "anthropic:claude-3-haiku-20240307"
		}},
		{"disableAI", "true", func(c Config) bool { return c.DisableAI }},
		{"limits.feedbackRunes", "200", func(c Config) bool { return c.Limits.FeedbackRunes == 200 }},
		{"retry.baseDelayMs", "10", func(c Config) bool { return c.Retry.BaseDelayMs == 10 }},
		{"cache.enabled", "false", func(c Config) bool { return !c.Cache.Enabled }},
		{"usage.maxCost", "2.5", func(c Config) bool { return c.Usage.MaxCost == 2.5 }},
		{"server.addr", ":9000", func(c Config) bool { return c.Server.Addr == ":9000" }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, SetField(&cfg, tt.key, tt.value))
			assert.True(t, tt.check(cfg))
		})
	}

	cfg := Default()
	assert.Error(t, SetField(&cfg, "concurrency", "many"))
	assert.Error(t, SetField(&cfg, "cache.enabled", "sometimes"))
	assert.Error(t, SetField(&cfg, "usage.maxCost", "free"))
	assert.ErrorContains(t, SetField(&cfg, "bogus", "1"), "unknown config key")
}

func TestKeysAreSettable(t *testing.T) {
	samples := map[string]string{}
	for _, k := range Keys() {
		cfg := Default()
		v := "1"
		switch {
		case strings.HasSuffix(k, "enabled"), strings.HasSuffix(k, "AI"), strings.HasSuffix(k, "OnError"), strings.HasSuffix(k, "Secrets"):
			v = "true"
		}
		samples[k] = v
		assert.NoError(t, SetField(&cfg, k, v), k)
	}
	assert.Len(t, samples, len(Keys()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Provider = "acme" }, "unknown provider"},
		{"format", func(c *Config) { c.Format = "sarif" }, "unknown format"},
		{"compare", func(c *Config) { c.Compare = []string{"gpt-4o"} }, "invalid model spec"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "unknown cache backend"},
		{"usage backend", func(c *Config) { c.Usage.Backend = "mongo" }, "unknown usage backend"},
		{"redis url", func(c *Config) { c.Usage.Backend = BackendRedis }, "redis.url"},
		{"attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "maxAttempts"},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.Cache.Backend = BackendRedis
	cfg.Cache.Enabled = false
	assert.NoError(t, cfg.Validate(), "a disabled redis cache needs no url")
}

func TestProviderConfigs(t *testing.T) {
	cfg := Default()
	cfg.APIKeys[providers.VendorAnthropic] = "sk-ant-REDACTED"
	cfg.Compare = []string{"claude:claude-3-haiku-20240307", "openai:gpt-4o"}

	pc, err := cfg.ProviderConfig()
	require.NoError(t, err)
	assert.Equal(t, providers.VendorAnthropic, pc.Vendor)
	assert.Equal(t, "sk-ant-REDACTED", pc.APIKey)
	assert.Equal(t, providers.DefaultModel(providers.VendorAnthropic), pc.Model)
	assert.Equal(t, 60*time.Second, pc.Timeout)

	list, err := cfg.CompareConfigs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "claude-3-haiku-20240307", list[0].Model)
	assert.Equal(t, providers.VendorOpenAI, list[1].Vendor)
	assert.Empty(t, list[1].APIKey)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Retry = RetryConfig{MaxAttempts: 4, BaseDelayMs: 100}
	cfg.Usage.MaxReviews = 10
	cfg.Limits.MaxQuestions = 2

	p := cfg.RetryPolicy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.BaseDelay)
	assert.Equal(t, providers.DefaultPolicy().MaxParseAttempts, p.MaxParseAttempts, "unset keeps default")
	assert.Equal(t, providers.DefaultPolicy().AttemptTimeout, p.AttemptTimeout)

	assert.Equal(t, int64(10), cfg.Quota().MaxReviews)
	assert.Equal(t, 2, cfg.ProcessOptions().MaxQuestions)

	v, err := cfg.PersonaVariant()
	require.NoError(t, err)
	assert.Equal(t, "beginner", string(v))
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Provider = "gemini"
			cfg.Cache.Enabled = false
			cfg.APIKeys[providers.VendorGemini] = "AIzaTest0123456789abcdefghij"
			require.NoError(t, SaveTo(path, cfg))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "AIzaTest", "credentials are never saved")

			got, err := LoadFrom(path, nil)
			require.NoError(t, err)
			assert.Equal(t, "gemini", got.Provider)
			assert.False(t, got.Cache.Enabled)
		})
	}
}

func TestConfigPathPrefersYAML(t *testing.T) {
	dir := isolate(t)
	p, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), p)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("format: json\n"), 0o600))
	p, err = ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), p)

	fileOnly, err := LoadFile()
	require.NoError(t, err)
	assert.Equal(t, "json", fileOnly.Format)
	assert.Empty(t, fileOnly.Provider)
}

func TestWatch(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: text\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, 20*time.Millisecond, func(c Config, err error) {
			if err != nil {
				return
			}
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var got Config
loop:
	for {
		select {
		case got = <-changes:
			if got.Format == "markdown" {
				break loop
			}
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("format: markdown\n"), 0o600))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
	assert.Equal(t, "markdown", got.Format)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestLoadFileFrom(t *testing.T) {
	isolate(t)
	t.Setenv("AI_PROVIDER", "openai")
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFileFrom(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Provider, cfg.Provider, "environment is not read")

	require.NoError(t, os.WriteFile(path, []byte("persona: advanced\n"), 0o600))
	cfg, err = LoadFileFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "advanced", cfg.Persona)
	assert.Equal(t, "text", cfg.Format)
}
