package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewGemini(context.Background(), Config{
		Vendor:  VendorGemini,
		APIKey:  testGeminiKey,
		BaseURL: server.URL,
	}, server.Client())
	if err != nil {
		t.Fatalf("NewGemini error: %v", err)
	}
	return g
}

func TestGemini_GenerateReview(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"feedback\":\"good\"}"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20}
		}`))
	})

	resp, err := g.GenerateReview(context.Background(), ReviewRequest{
		SystemPrompt: "sys",
		UserMessage:  "user",
		Temperature:  0.5,
	})
	if err != nil {
		t.Fatalf("GenerateReview error: %v", err)
	}
	if resp.Content != `{"feedback":"good"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d, want 12/8", resp.InputTokens, resp.OutputTokens)
	}
}

func TestGemini_RateLimited(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`))
	})

	_, err := g.GenerateReview(context.Background(), ReviewRequest{UserMessage: "x"})
	if KindOf(err) != KindRateLimit {
		t.Errorf("KindOf = %v, want rate_limit (err: %v)", KindOf(err), err)
	}
}

func TestGemini_Name(t *testing.T) {
	g := &Gemini{model: "test"}
	if g.Name() != "gemini" {
		t.Errorf("Name() = %q, want %q", g.Name(), "gemini")
	}
}
