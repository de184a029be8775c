package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI implements Adapter for the chat completions API. Ollama reuses it
// against a local OpenAI-compatible endpoint.
type OpenAI struct {
	name     string
	apiKey   string
	model    string
	baseURL  string
	pricing  Pricing
	jsonMode bool
	client   *http.Client
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg Config, client *http.Client) *OpenAI {
	cfg = cfg.Normalize()
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAI{
		name:     string(VendorOpenAI),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  baseURL,
		pricing:  cfg.pricing(),
		jsonMode: true,
		client:   cfg.httpClient(client),
	}
}

func (o *OpenAI) Name() string  { return o.name }
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) ValidateCredential() error {
	return ValidateCredential(Config{Vendor: Vendor(o.name), APIKey: o.apiKey})
}

func (o *OpenAI) CountTokens(text string) int { return CountTokens(text) }

func (o *OpenAI) EstimateCost(inputTokens, outputTokens int) float64 {
	return o.pricing.Cost(inputTokens, outputTokens)
}

func (o *OpenAI) GenerateReview(ctx context.Context, req ReviewRequest) (RawResponse, error) {
	if err := o.ValidateCredential(); err != nil {
		return RawResponse{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	var messages []openaiMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.UserMessage})

	body := openaiRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	if o.jsonMode {
		body.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	start := time.Now()
	respBody, err := postJSON(ctx, o.client, o.name, o.baseURL, headers, body)
	if err != nil {
		return RawResponse{}, err
	}

	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return RawResponse{}, parseError(o.name, string(respBody), fmt.Errorf("parsing response: %w", err))
	}
	if len(result.Choices) == 0 {
		return RawResponse{}, parseError(o.name, string(respBody), fmt.Errorf("no choices in response"))
	}
	content := result.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return RawResponse{}, parseError(o.name, string(respBody), fmt.Errorf("empty text content in API response"))
	}

	return RawResponse{
		Content:      content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		Latency:      time.Since(start),
		Provider:     o.name,
		Model:        o.model,
	}, nil
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
