package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 512

// postJSON sends one JSON request and classifies every non-success outcome.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, configError(provider, "marshal", "marshaling request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, configError(provider, "request", "creating request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, provider, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(ctx, provider, fmt.Errorf("reading response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(provider, httpResp, respBody)
	}
	return respBody, nil
}

func statusError(provider string, resp *http.Response, body []byte) *Error {
	e := &Error{
		Provider:   provider,
		Op:         "generate",
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%s", truncate(string(body), maxErrorBody)),
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.Kind = KindConfiguration
	case resp.StatusCode == http.StatusRequestTimeout:
		e.Kind = KindTimeout
	case resp.StatusCode >= 500:
		// includes Anthropic's 529 overloaded
		e.Kind = KindTransientServer
	default:
		e.Kind = KindConfiguration
	}
	return e
}

func transportError(ctx context.Context, provider string, err error) *Error {
	e := &Error{Provider: provider, Op: "generate", Err: err}
	var netErr net.Error
	switch {
	case ctx.Err() == context.Canceled || errors.Is(err, context.Canceled):
		e.Kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = KindTimeout
	default:
		e.Kind = KindTransientServer
	}
	return e
}

func parseError(provider, raw string, err error) *Error {
	return &Error{Kind: KindParse, Provider: provider, Op: "decode", Raw: raw, Err: err}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
