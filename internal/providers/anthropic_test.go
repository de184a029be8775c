package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAnthropic_GenerateReview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != testAnthropicKey {
			t.Error("Missing API key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}
		var body anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if body.System != "system" {
			t.Errorf("System = %q, want %q", body.System, "system")
		}
		if body.Temperature == nil || *body.Temperature != 0.7 {
			t.Errorf("Temperature = %v, want 0.7", body.Temperature)
		}
		if len(body.Messages) != 1 || body.Messages[0].Content != "user message" {
			t.Errorf("Messages = %+v", body.Messages)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: `{"feedback":"ok"}`},
			},
			Usage: anthropicUsage{InputTokens: 100, OutputTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := NewAnthropic(Config{Vendor: VendorAnthropic, APIKey: testAnthropicKey}, rewriteClient(server.URL))

	req, err := NewReviewRequest("Write a poem", "system", "user message", 0.7, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := a.GenerateReview(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateReview error: %v", err)
	}
	if resp.Content != `{"feedback":"ok"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.InputTokens != 100 || resp.OutputTokens != 10 {
		t.Errorf("tokens = %d/%d, want 100/10", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Provider != "anthropic" || resp.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("Provider/Model = %s/%s", resp.Provider, resp.Model)
	}
}

func TestAnthropic_StatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		want       Kind
	}{
		{"unauthorized", 401, "", KindConfiguration},
		{"forbidden", 403, "", KindConfiguration},
		{"bad request", 400, "", KindConfiguration},
		{"rate limited", 429, "3", KindRateLimit},
		{"request timeout", 408, "", KindTimeout},
		{"server error", 500, "", KindTransientServer},
		{"overloaded", 529, "", KindTransientServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			a := NewAnthropic(Config{Vendor: VendorAnthropic, APIKey: testAnthropicKey}, rewriteClient(server.URL))
			_, err := a.GenerateReview(context.Background(), ReviewRequest{UserMessage: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("error %T is not *Error", err)
			}
			if e.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", e.StatusCode, tt.status)
			}
			if tt.retryAfter != "" && e.RetryAfter != 3*time.Second {
				t.Errorf("RetryAfter = %v, want 3s", e.RetryAfter)
			}
		})
	}
}

func TestAnthropic_EmptyContentIsParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{})
	}))
	defer server.Close()

	a := NewAnthropic(Config{Vendor: VendorAnthropic, APIKey: testAnthropicKey}, rewriteClient(server.URL))
	_, err := a.GenerateReview(context.Background(), ReviewRequest{UserMessage: "x"})
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestAnthropic_InvalidKeyNeverReachesNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer server.Close()

	transport := &countingTransport{next: &rewriteTransport{baseURL: server.URL}}
	a := NewAnthropic(Config{Vendor: VendorAnthropic, APIKey: "sk-wrong"}, &http.Client{Transport: transport})
	_, err := a.GenerateReview(context.Background(), ReviewRequest{UserMessage: "x"})
	if !IsConfigurationError(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
	if n := transport.calls.Load(); n != 0 {
		t.Errorf("transport calls = %d, want 0", n)
	}
}

func TestAnthropic_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAnthropic(Config{Vendor: VendorAnthropic, APIKey: testAnthropicKey}, rewriteClient(server.URL))
	_, err := a.GenerateReview(ctx, ReviewRequest{UserMessage: "x"})
	if KindOf(err) != KindCancelled {
		t.Errorf("KindOf = %v, want cancelled", KindOf(err))
	}
}

func TestAnthropic_EstimateCost(t *testing.T) {
	a := NewAnthropic(Config{Vendor: VendorAnthropic, APIKey: testAnthropicKey, Model: "claude-3-opus-20240229"}, nil)
	got := a.EstimateCost(1_000_000, 1_000_000)
	if got != 90 {
		t.Errorf("EstimateCost = %v, want 90", got)
	}
	if a.Name() != "anthropic" {
		t.Errorf("Name() = %q, want %q", a.Name(), "anthropic")
	}
}
