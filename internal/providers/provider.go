package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Exchange is one prior question and the author's answer to it.
type Exchange struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// ReviewRequest contains the data sent to an LLM for review. Build it with
// NewReviewRequest and treat it as a value.
type ReviewRequest struct {
	Prompt       string
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
	Temperature  float64
	Context      []Exchange
}

// ErrEmptyPrompt is returned when the text under review is blank.
var ErrEmptyPrompt = errors.New("prompt text is empty")

// NewReviewRequest validates and copies its inputs into a ReviewRequest.
func NewReviewRequest(prompt, system, user string, temperature float64, maxTokens int, prior []Exchange) (ReviewRequest, error) {
	if strings.TrimSpace(prompt) == "" {
		return ReviewRequest{}, &Error{Kind: KindConfiguration, Op: "request", Err: ErrEmptyPrompt}
	}
	if user == "" {
		user = prompt
	}
	var ctxCopy []Exchange
	if len(prior) > 0 {
		ctxCopy = make([]Exchange, len(prior))
		copy(ctxCopy, prior)
	}
	return ReviewRequest{
		Prompt:       prompt,
		SystemPrompt: system,
		UserMessage:  user,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		Context:      ctxCopy,
	}, nil
}

// RawResponse is the provider's unmodified output plus transport metadata.
type RawResponse struct {
	Content      string        `json:"content"`
	InputTokens  int           `json:"inputTokens"`
	OutputTokens int           `json:"outputTokens"`
	Latency      time.Duration `json:"latency"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
}

// TotalTokens returns input plus output tokens.
func (r RawResponse) TotalTokens() int { return r.InputTokens + r.OutputTokens }

// Adapter is the capability set every provider variant implements.
// GenerateReview makes exactly one attempt; retrying belongs to Retrier.
type Adapter interface {
	Name() string
	Model() string
	ValidateCredential() error
	GenerateReview(ctx context.Context, req ReviewRequest) (RawResponse, error)
	CountTokens(text string) int
	EstimateCost(inputTokens, outputTokens int) float64
}

// Config selects and parameterises one adapter.
type Config struct {
	Vendor  Vendor
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Pricing overrides the built-in price table when set.
	Pricing *Pricing
}

// Normalize resolves vendor aliases and fills in the default model.
func (c Config) Normalize() Config {
	if v, err := ParseVendor(string(c.Vendor)); err == nil {
		c.Vendor = v
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Model == "" {
		c.Model = DefaultModel(c.Vendor)
	}
	return c
}

// Fingerprint returns a short non-reversible digest of the credential.
func (c Config) Fingerprint() string {
	if c.APIKey == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(c.APIKey))
	return hex.EncodeToString(sum[:])[:12]
}

// Identity is the registry key: vendor, credential fingerprint, model and
// endpoint.
func (c Config) Identity() string {
	n := c.Normalize()
	id := fmt.Sprintf("%s|%s|%s", n.Vendor, n.Fingerprint(), n.Model)
	if n.BaseURL != "" {
		id += "|" + n.BaseURL
	}
	if n.Pricing != nil {
		id += fmt.Sprintf("|%g/%g", n.Pricing.InputPerMillion, n.Pricing.OutputPerMillion)
	}
	return id
}

func (c Config) pricing() Pricing {
	if c.Pricing != nil {
		return *c.Pricing
	}
	return PricingFor(c.Vendor, c.Model)
}

func (c Config) httpClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// New validates the credential and constructs the adapter for cfg. A nil
// client gets a default one with the configured timeout.
func New(cfg Config, client *http.Client) (Adapter, error) {
	cfg = cfg.Normalize()
	if err := ValidateCredential(cfg); err != nil {
		return nil, err
	}
	switch cfg.Vendor {
	case VendorAnthropic:
		return NewAnthropic(cfg, client), nil
	case VendorOpenAI:
		return NewOpenAI(cfg, client), nil
	case VendorGemini:
		return NewGemini(context.Background(), cfg, client)
	case VendorOllama:
		return NewOllama(cfg, client), nil
	default:
		return nil, configError(string(cfg.Vendor), "new", "unknown provider: %s", cfg.Vendor)
	}
}
