package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic implements Adapter for Anthropic's Messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	pricing Pricing
	client  *http.Client
}

// NewAnthropic creates an Anthropic adapter. Callers normally go through New
// or a Registry, which validate the credential first.
func NewAnthropic(cfg Config, client *http.Client) *Anthropic {
	cfg = cfg.Normalize()
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicAPIURL
	}
	return &Anthropic{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		pricing: cfg.pricing(),
		client:  cfg.httpClient(client),
	}
}

func (a *Anthropic) Name() string  { return string(VendorAnthropic) }
func (a *Anthropic) Model() string { return a.model }

func (a *Anthropic) ValidateCredential() error {
	return ValidateCredential(Config{Vendor: VendorAnthropic, APIKey: a.apiKey})
}

func (a *Anthropic) CountTokens(text string) int { return CountTokens(text) }

func (a *Anthropic) EstimateCost(inputTokens, outputTokens int) float64 {
	return a.pricing.Cost(inputTokens, outputTokens)
}

func (a *Anthropic) GenerateReview(ctx context.Context, req ReviewRequest) (RawResponse, error) {
	if err := a.ValidateCredential(); err != nil {
		return RawResponse{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.UserMessage},
		},
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}

	start := time.Now()
	respBody, err := postJSON(ctx, a.client, a.Name(), a.baseURL, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}, body)
	if err != nil {
		return RawResponse{}, err
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return RawResponse{}, parseError(a.Name(), string(respBody), fmt.Errorf("parsing response: %w", err))
	}

	var content strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(content.String()) == "" {
		return RawResponse{}, parseError(a.Name(), string(respBody), fmt.Errorf("empty text content in API response"))
	}

	return RawResponse{
		Content:      content.String(),
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Latency:      time.Since(start),
		Provider:     a.Name(),
		Model:        a.model,
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
