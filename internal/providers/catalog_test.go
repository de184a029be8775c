package providers

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCredential(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic ok", Config{Vendor: VendorAnthropic, APIKey: testAnthropicKey}, false},
		{"anthropic wrong prefix", Config{Vendor: VendorAnthropic, APIKey: testOpenAIKey}, true},
		{"anthropic empty", Config{Vendor: VendorAnthropic}, true},
		{"anthropic too short", Config{Vendor: VendorAnthropic, APIKey: "sk-ant-x"}, true},
		{"openai ok", Config{Vendor: VendorOpenAI, APIKey: testOpenAIKey}, false},
		{"openai given anthropic key", Config{Vendor: VendorOpenAI, APIKey: testAnthropicKey}, true},
		{"openai missing prefix", Config{Vendor: VendorOpenAI, APIKey: "pk-0123456789abcdefghijkl"}, true},
		{"gemini ok", Config{Vendor: VendorGemini, APIKey: testGeminiKey}, false},
		{"gemini alias", Config{Vendor: "google", APIKey: testGeminiKey}, false},
		{"gemini wrong", Config{Vendor: VendorGemini, APIKey: testOpenAIKey}, true},
		{"ollama keyless", Config{Vendor: VendorOllama}, false},
		{"unknown", Config{Vendor: "acme", APIKey: testOpenAIKey}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredential(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCredential() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsConfigurationError(err) {
				t.Errorf("error %v is not a configuration error", err)
			}
			if err != nil && strings.Contains(err.Error(), tt.cfg.APIKey) && tt.cfg.APIKey != "" {
				t.Errorf("error message leaks the key: %v", err)
			}
		})
	}
}

func TestPricingFor(t *testing.T) {
	assert.Equal(t, Pricing{10, 30}, PricingFor(VendorOpenAI, "gpt-4-turbo"))
	assert.Equal(t, Pricing{0.5, 1.5}, PricingFor(VendorOpenAI, "gpt-3.5-turbo"))
	assert.Equal(t, Pricing{10, 30}, PricingFor(VendorOpenAI, "gpt-unknown"), "unknown model uses default pricing")
	assert.Equal(t, Pricing{0.25, 1.25}, PricingFor(VendorAnthropic, "claude-3-haiku-20240307"))
	assert.Equal(t, Pricing{3, 15}, PricingFor(VendorAnthropic, "claude-next"))
}

func TestPricing_Cost(t *testing.T) {
	p := Pricing{InputPerMillion: 10, OutputPerMillion: 30}
	assert.InDelta(t, 0.04, p.Cost(1000, 1000), 1e-9)
	assert.Equal(t, "$0.0400", FormatCost(p.Cost(1000, 1000)))
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 1, CountTokens("abc"))
	assert.Equal(t, 1, CountTokens("abcd"))
	assert.Equal(t, 2, CountTokens("abcde"))
	assert.Equal(t, 1, CountTokens("ééé"), "counts runes, not bytes")
}

func TestConfig_Identity(t *testing.T) {
	a := Config{Vendor: VendorOpenAI, APIKey: testOpenAIKey}
	b := Config{Vendor: "openai", APIKey: " " + testOpenAIKey, Model: "gpt-4-turbo"}
	assert.Equal(t, a.Identity(), b.Identity(), "aliases, whitespace and default model normalise")

	c := Config{Vendor: VendorOpenAI, APIKey: testOpenAIKey + "2"}
	assert.NotEqual(t, a.Identity(), c.Identity())
	assert.NotContains(t, a.Identity(), testOpenAIKey)
	assert.Len(t, a.Fingerprint(), 12)
}

func TestParseVendor(t *testing.T) {
	for in, want := range map[string]Vendor{
		"anthropic": VendorAnthropic,
		"Claude":    VendorAnthropic,
		"OPENAI":    VendorOpenAI,
		"google":    VendorGemini,
		"lmstudio":  VendorOllama,
	} {
		got, err := ParseVendor(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseVendor("acme")
	assert.True(t, IsConfigurationError(err))
	assert.Len(t, Vendors(), 4)
	assert.Contains(t, Models(VendorAnthropic), "claude-3-opus-20240229")
}

func TestNewReviewRequest(t *testing.T) {
	prior := []Exchange{{Question: "Who?", Answer: "Me"}}
	req, err := NewReviewRequest("prompt", "sys", "", 0.7, 100, prior)
	assert.NoError(t, err)
	assert.Equal(t, "prompt", req.UserMessage, "user message defaults to the prompt")
	prior[0].Answer = "changed"
	assert.Equal(t, "Me", req.Context[0].Answer, "context is copied")

	_, err = NewReviewRequest("   ", "sys", "", 0.7, 100, nil)
	assert.True(t, IsConfigurationError(err))
	assert.True(t, errors.Is(err, ErrEmptyPrompt))
}

func TestErrorMatching(t *testing.T) {
	inner := &Error{Kind: KindRateLimit, Provider: "openai", StatusCode: 429}
	exhausted := &Error{Kind: KindRetriesExhausted, Attempts: 3, Err: inner}

	assert.ErrorIs(t, exhausted, ErrRetriesExhausted)
	assert.ErrorIs(t, exhausted, ErrRateLimit, "the wrapped kind is still reachable")
	assert.Equal(t, KindRetriesExhausted, KindOf(exhausted))
	assert.Same(t, inner, Cause(exhausted))
	assert.Contains(t, exhausted.Error(), "after 3 attempts")
	assert.Contains(t, exhausted.Error(), "status 429")

	assert.False(t, KindConfiguration.Retryable())
	assert.True(t, KindParse.Retryable())
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5*time.Second, parseRetryAfter("5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter("Wed, 01 Jan 2025 00:00:30 GMT", now))
}
