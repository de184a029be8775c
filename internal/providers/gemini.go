package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini implements Adapter on the Google GenAI SDK.
type Gemini struct {
	apiKey  string
	model   string
	pricing Pricing
	client  *genai.Client
}

// NewGemini creates a Gemini adapter. A non-nil httpClient replaces the SDK's
// default transport and a BaseURL in cfg redirects requests.
func NewGemini(ctx context.Context, cfg Config, httpClient *http.Client) (*Gemini, error) {
	cfg = cfg.Normalize()
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if httpClient != nil {
		cc.HTTPClient = httpClient
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, configError(string(VendorGemini), "new", "failed to create GenAI client: %v", err)
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		pricing: cfg.pricing(),
		client:  client,
	}, nil
}

func (g *Gemini) Name() string  { return string(VendorGemini) }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) ValidateCredential() error {
	return ValidateCredential(Config{Vendor: VendorGemini, APIKey: g.apiKey})
}

func (g *Gemini) CountTokens(text string) int { return CountTokens(text) }

func (g *Gemini) EstimateCost(inputTokens, outputTokens int) float64 {
	return g.pricing.Cost(inputTokens, outputTokens)
}

func (g *Gemini) GenerateReview(ctx context.Context, req ReviewRequest) (RawResponse, error) {
	if err := g.ValidateCredential(); err != nil {
		return RawResponse{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	gc := &genai.GenerateContentConfig{
		MaxOutputTokens:  int32(maxTokens),
		ResponseMIMEType: "application/json",
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		gc.Temperature = &temp
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.UserMessage), gc)
	if err != nil {
		return RawResponse{}, g.classify(ctx, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return RawResponse{}, parseError(g.Name(), text, fmt.Errorf("empty text content in API response"))
	}

	out := RawResponse{
		Content:  text,
		Latency:  time.Since(start),
		Provider: g.Name(),
		Model:    g.model,
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (g *Gemini) classify(ctx context.Context, err error) *Error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}
	if code == 0 {
		return transportError(ctx, g.Name(), err)
	}

	e := &Error{Provider: g.Name(), Op: "generate", StatusCode: code, Err: err}
	switch {
	case code == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Kind = KindConfiguration
	case code == http.StatusRequestTimeout:
		e.Kind = KindTimeout
	case code >= 500:
		e.Kind = KindTransientServer
	default:
		e.Kind = KindConfiguration
	}
	return e
}
