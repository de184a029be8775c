package providers

import (
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// NewOllama returns an adapter for Ollama or LM Studio. Both speak the OpenAI
// chat completions protocol; no API key is required unless the server asks
// for one.
func NewOllama(cfg Config, client *http.Client) *OpenAI {
	cfg = cfg.Normalize()
	if client == nil && cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	o := NewOpenAI(cfg, client)
	o.name = string(VendorOllama)
	o.baseURL = ollamaEndpoint(cfg.BaseURL)
	// Local models vary in support for response_format.
	o.jsonMode = false
	return o
}

// ollamaEndpoint normalises a host such as http://localhost:11434/v1 to the
// chat completions URL.
func ollamaEndpoint(base string) string {
	if base == "" {
		base = defaultOllamaURL
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/v1/chat/completions")
	base = strings.TrimSuffix(base, "/v1")
	return base + "/v1/chat/completions"
}
