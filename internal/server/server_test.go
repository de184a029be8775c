package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/review"
	"github.com/dshills/promptcoach/internal/usage"
)

const (
	testKey   = "sk-test-0123456789abcdefghij"
	goodReply = `{"suggested_prompt":"Write a haiku about rain","questions":["Who reads it"],"refinements":["add a mood"],"ratings":{"length":3,"complexity":2,"specificity":4,"clarity":7,"creativity":5,"context":2},"feedback":"Solid start."}`
)

type stubAdapter struct {
	mu    sync.Mutex
	resp  providers.RawResponse
	err   error
	calls int
}

func (s *stubAdapter) Name() string                { return "openai" }
func (s *stubAdapter) Model() string               { return "gpt-test" }
func (s *stubAdapter) ValidateCredential() error   { return nil }
func (s *stubAdapter) CountTokens(text string) int { return providers.CountTokens(text) }
func (s *stubAdapter) EstimateCost(in, out int) float64 {
	return providers.Pricing{InputPerMillion: 1, OutputPerMillion: 2}.Cost(in, out)
}

func (s *stubAdapter) GenerateReview(context.Context, providers.ReviewRequest) (providers.RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.resp, s.err
}

type fixture struct {
	srv     *Server
	adapter *stubAdapter
	ledger  *usage.Memory
}

func newFixture(t *testing.T, quota usage.Quota, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		adapter: &stubAdapter{resp: providers.RawResponse{Content: goodReply, InputTokens: 50, OutputTokens: 40}},
		ledger:  usage.NewMemory(),
	}
	registry := providers.NewRegistry(
		providers.WithConstructor(providers.VendorOpenAI, func(providers.Config, *http.Client) (providers.Adapter, error) {
			return f.adapter, nil
		}),
	)
	retrier := providers.NewRetrier(providers.DefaultPolicy(),
		providers.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	engine := review.NewEngine(registry, review.WithRetrier(retrier), review.WithLedger(f.ledger, quota))

	cfg := config.Default()
	cfg.Provider = "openai"
	cfg.Model = "gpt-test"
	cfg.APIKeys[providers.VendorOpenAI] = testKey
	cfg.Usage.MaxReviews = quota.MaxReviews

	f.srv = New(engine, cfg, append([]Option{WithLedger(f.ledger), WithVersion("test")}, opts...)...)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp, out
}

func (f *fixture) doList(t *testing.T, path string) []map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, usage.Quota{}, WithHealthCheck("redis", func(context.Context) error { return nil }))
	resp, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	f = newFixture(t, usage.Quota{}, WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") }))
	resp, body = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])
}

func TestPersonas(t *testing.T) {
	f := newFixture(t, usage.Quota{})
	list := f.doList(t, "/v1/personas")
	require.Len(t, list, 4)
	assert.Equal(t, "beginner", list[0]["variant"])
	assert.Equal(t, true, list[0]["default"])
	assert.Equal(t, "Critical Interviewer", list[3]["name"])

	cfg := f.srv.Config()
	cfg.Persona = "advanced"
	f.srv.SetConfig(cfg)
	list = f.doList(t, "/v1/personas")
	assert.Equal(t, false, list[0]["default"])
	assert.Equal(t, true, list[2]["default"])
}

func TestProviders(t *testing.T) {
	f := newFixture(t, usage.Quota{})
	list := f.doList(t, "/v1/providers")
	require.Len(t, list, 4)
	byName := map[string]map[string]any{}
	for _, p := range list {
		byName[p["provider"].(string)] = p
	}
	assert.Equal(t, true, byName["openai"]["configured"])
	assert.Equal(t, true, byName["openai"]["active"])
	assert.Equal(t, false, byName["anthropic"]["configured"])
	assert.Equal(t, true, byName["ollama"]["configured"], "ollama needs no key")
	assert.NotEmpty(t, byName["gemini"]["models"])
}

func TestReview_Success(t *testing.T) {
	f := newFixture(t, usage.Quota{})
	resp, body := f.do(t, http.MethodPost, "/v1/reviews", map[string]any{
		"prompt":      "Write a poem about rain",
		"persona":     "intermediate",
		"description": "Testing a poem prompt",
	}, HeaderUserID, "ada")

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "false", resp.Header.Get("X-Cache-Hit"))
	assert.Equal(t, "intermediate", body["persona"])
	assert.Equal(t, true, body["aiUsed"])
	assert.Equal(t, "Solid start.", body["feedback"])
	assert.Equal(t, []any{"Who reads it?"}, body["questions"])
	ratings := body["ratings"].(map[string]any)
	assert.Len(t, ratings, 6)
	assert.Equal(t, 7.0, ratings["clarity"])
	assert.Contains(t, body, "insights")

	totals, err := f.ledger.Totals(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.All.Reviews)
}

func TestReview_ClientErrors(t *testing.T) {
	f := newFixture(t, usage.Quota{})
	tests := []struct {
		name string
		body any
		kind string
	}{
		{"malformed body", `{"prompt": `, ""},
		{"empty prompt", map[string]any{"prompt": "  "}, "configuration"},
		{"unknown persona", map[string]any{"prompt": "hi", "persona": "wizard"}, "configuration"},
		{"unknown provider", map[string]any{"prompt": "hi", "provider": "acme"}, "configuration"},
		{"missing key", map[string]any{"prompt": "hi", "provider": "anthropic"}, "configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/v1/reviews", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			if tt.kind != "" {
				assert.Equal(t, tt.kind, body["kind"])
			}
		})
	}
	assert.Equal(t, 0, f.adapter.calls)
}

func TestReview_Fallback(t *testing.T) {
	f := newFixture(t, usage.Quota{})
	resp, body := f.do(t, http.MethodPost, "/v1/reviews", map[string]any{"prompt": "hi", "useAI": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["aiUsed"])
	assert.Equal(t, 0, f.adapter.calls)

	f.adapter.err = &providers.Error{Kind: providers.KindTransientServer, StatusCode: 503}
	resp, body = f.do(t, http.MethodPost, "/v1/reviews", map[string]any{"prompt": "hi", "fallbackOnError": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["aiUsed"])
	assert.NotEmpty(t, body["error"])
}

func TestReview_UpstreamErrors(t *testing.T) {
	f := newFixture(t, usage.Quota{})

	f.adapter.err = &providers.Error{Kind: providers.KindRateLimit, StatusCode: 429, RetryAfter: 3 * time.Second}
	resp, body := f.do(t, http.MethodPost, "/v1/reviews", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "retries_exhausted", body["kind"])
	assert.Equal(t, 3.0, body["attempts"])
	assert.Equal(t, "3", resp.Header.Get("Retry-After"))

	f.adapter.err = nil
	f.adapter.resp = providers.RawResponse{Content: `{"feedback": "cut`}
	resp, body = f.do(t, http.MethodPost, "/v1/reviews", map[string]any{"prompt": "hi", "skipCache": true})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "parse", body["kind"])
	assert.Equal(t, `{"feedback": "cut`, body["raw"])
}

func TestReview_QuotaExceeded(t *testing.T) {
	f := newFixture(t, usage.Quota{MaxReviews: 1})
	resp, _ := f.do(t, http.MethodPost, "/v1/reviews", map[string]any{"prompt": "one"}, HeaderUserID, "bob")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/v1/reviews", map[string]any{"prompt": "two"}, HeaderUserID, "bob")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limit", body["kind"])

	resp, body = f.do(t, http.MethodGet, "/v1/usage?user=bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["usage"].(map[string]any)["all"].(map[string]any)["reviews"])
	assert.Equal(t, 1.0, body["quota"].(map[string]any)["max_reviews"])
}

func TestCompare(t *testing.T) {
	f := newFixture(t, usage.Quota{})

	resp, body := f.do(t, http.MethodPost, "/v1/compare", map[string]any{
		"prompt":   "Write a poem",
		"personas": []string{"beginner", "advanced"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	outcomes := body["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "advanced", outcomes[1].(map[string]any)["label"])
	assert.Equal(t, []any{"Add a mood"}, body["consensus"])

	resp, body = f.do(t, http.MethodPost, "/v1/compare", map[string]any{
		"prompt":    "Write a poem",
		"providers": []string{"openai:gpt-test", "anthropic:claude-test"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	outcomes = body["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	assert.Nil(t, outcomes[0].(map[string]any)["error"])
	assert.Contains(t, outcomes[1].(map[string]any)["error"], "configuration", "no anthropic key configured")

	resp, _ = f.do(t, http.MethodPost, "/v1/compare", map[string]any{"prompt": "x", "providers": []string{"gpt-4o"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/v1/compare", map[string]any{"prompt": "x", "personas": []string{"wizard"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUsageDisabled(t *testing.T) {
	f := newFixture(t, usage.Quota{})
	f.srv.ledger = nil
	resp, _ := f.do(t, http.MethodGet, "/v1/usage", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	exhausted := func(cause providers.Kind) error {
		return &providers.Error{Kind: providers.KindRetriesExhausted, Err: &providers.Error{Kind: cause}}
	}
	tests := []struct {
		err  error
		want int
	}{
		{providers.ErrConfiguration, http.StatusBadRequest},
		{providers.ErrRateLimit, http.StatusTooManyRequests},
		{providers.ErrTimeout, http.StatusGatewayTimeout},
		{providers.ErrTransientServer, http.StatusBadGateway},
		{providers.ErrParse, http.StatusBadGateway},
		{providers.ErrCancelled, http.StatusRequestTimeout},
		{exhausted(providers.KindRateLimit), http.StatusTooManyRequests},
		{exhausted(providers.KindTimeout), http.StatusGatewayTimeout},
		{exhausted(providers.KindTransientServer), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
