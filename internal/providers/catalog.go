package providers

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Vendor tags a provider variant.
type Vendor string

const (
	VendorAnthropic Vendor = "anthropic"
	VendorOpenAI    Vendor = "openai"
	VendorGemini    Vendor = "gemini"
	VendorOllama    Vendor = "ollama"
)

// Pricing is the cost in USD per one million tokens.
type Pricing struct {
	InputPerMillion  float64 `json:"inputPerMillion" yaml:"inputPerMillion"`
	OutputPerMillion float64 `json:"outputPerMillion" yaml:"outputPerMillion"`
}

// Cost returns the estimated USD cost for the token counts.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*p.InputPerMillion + float64(outputTokens)/1e6*p.OutputPerMillion
}

type vendorSpec struct {
	keyPrefix    string
	rejectPrefix string
	keyRequired  bool
	envKeys      []string
	defaultModel string
	prices       map[string]Pricing
}

const minKeyLength = 20

var vendors = map[Vendor]vendorSpec{
	VendorAnthropic: {
		keyPrefix:    "sk-ant-",
		keyRequired:  true,
		envKeys:      []string{"ANTHROPIC_API_KEY"},
		defaultModel: "claude-3-5-sonnet-20241022",
		prices: map[string]Pricing{
			"claude-3-5-sonnet-20241022": {3, 15},
			"claude-3-opus-20240229":     {15, 75},
			"claude-3-sonnet-20240229":   {3, 15},
			"claude-3-haiku-20240307":    {0.25, 1.25},
		},
	},
	VendorOpenAI: {
		keyPrefix:    "sk-",
		rejectPrefix: "sk-ant-",
		keyRequired:  true,
		envKeys:      []string{"OPENAI_API_KEY"},
		defaultModel: "gpt-4-turbo",
		prices: map[string]Pricing{
			"gpt-4-turbo":   {10, 30},
			"gpt-4":         {30, 60},
			"gpt-4o":        {2.5, 10},
			"gpt-3.5-turbo": {0.5, 1.5},
		},
	},
	VendorGemini: {
		keyPrefix:    "AIza",
		keyRequired:  true,
		envKeys:      []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		defaultModel: "gemini-2.0-flash",
		prices: map[string]Pricing{
			"gemini-2.0-flash": {0.1, 0.4},
			"gemini-1.5-pro":   {1.25, 5},
		},
	},
	VendorOllama: {
		envKeys:      []string{"OLLAMA_API_KEY"},
		defaultModel: "llama3.1",
		prices:       map[string]Pricing{"llama3.1": {0, 0}},
	},
}

// ParseVendor resolves a provider name, including the google and lmstudio
// aliases.
func ParseVendor(s string) (Vendor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anthropic", "claude":
		return VendorAnthropic, nil
	case "openai":
		return VendorOpenAI, nil
	case "gemini", "google":
		return VendorGemini, nil
	case "ollama", "lmstudio":
		return VendorOllama, nil
	}
	return "", configError(s, "parse", "unknown provider: %s", s)
}

// Vendors lists the supported providers in display order.
func Vendors() []Vendor {
	return []Vendor{VendorAnthropic, VendorOpenAI, VendorGemini, VendorOllama}
}

// DefaultModel returns the model used when a config leaves it empty.
func DefaultModel(v Vendor) string {
	return vendors[v].defaultModel
}

// EnvKeys returns the environment variables that may hold v's credential.
func EnvKeys(v Vendor) []string {
	return vendors[v].envKeys
}

// Models lists the models with known pricing for v, sorted.
func Models(v Vendor) []string {
	spec := vendors[v]
	out := make([]string, 0, len(spec.prices))
	for m := range spec.prices {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// PricingFor returns the price of model, falling back to the vendor's
// default model for unknown names.
func PricingFor(v Vendor, model string) Pricing {
	spec := vendors[v]
	if p, ok := spec.prices[model]; ok {
		return p
	}
	return spec.prices[spec.defaultModel]
}

// ValidateCredential checks the key format locally. It never touches the
// network.
func ValidateCredential(cfg Config) error {
	cfg.Vendor = cfg.Normalize().Vendor
	spec, ok := vendors[cfg.Vendor]
	if !ok {
		return configError(string(cfg.Vendor), "validate", "unknown provider: %q", cfg.Vendor)
	}
	key := strings.TrimSpace(cfg.APIKey)
	name := string(cfg.Vendor)
	if key == "" {
		if spec.keyRequired {
			return configError(name, "validate", "API key is not set (%s)", strings.Join(spec.envKeys, " or "))
		}
		return nil
	}
	if spec.keyPrefix == "" {
		return nil
	}
	if !strings.HasPrefix(key, spec.keyPrefix) {
		return configError(name, "validate", "API key must start with %q", spec.keyPrefix)
	}
	if spec.rejectPrefix != "" && strings.HasPrefix(key, spec.rejectPrefix) {
		return configError(name, "validate", "API key looks like a key for another provider (%q prefix)", spec.rejectPrefix)
	}
	if len(key) < minKeyLength {
		return configError(name, "validate", "API key is too short")
	}
	return nil
}

// CountTokens estimates tokens as one per four characters, rounded up.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// FormatCost renders a USD amount for display.
func FormatCost(usd float64) string {
	return fmt.Sprintf("$%.4f", usd)
}
