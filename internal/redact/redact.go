package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// minValueLength keeps Values from redacting trivially short strings.
const minValueLength = 8

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys (long hex/base64 strings after common key patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Generic secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic, then OpenAI (including project keys)
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_-]{20,}`),
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// Connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@[^\s"']+`),
	// Generic long hex strings that look like secrets (32+ chars in an assignment)
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllLiteralString(result, placeholder)
	}
	return result
}

// Count reports how many secrets Secrets would replace.
func Count(text string) int {
	n := 0
	for _, pat := range secretPatterns {
		n += len(pat.FindAllStringIndex(text, -1))
		text = pat.ReplaceAllLiteralString(text, placeholder)
	}
	return n
}

// Values replaces every literal occurrence of the given values, such as the
// configured API key echoed back in a provider error body.
func Values(text string, values ...string) string {
	for _, v := range values {
		if len(v) < minValueLength {
			continue
		}
		text = strings.ReplaceAll(text, v, placeholder)
	}
	return text
}

// Fields runs Secrets over each field in place and returns how many fields
// changed.
func Fields(fields ...*string) int {
	changed := 0
	for _, f := range fields {
		if f == nil || *f == "" {
			continue
		}
		if r := Secrets(*f); r != *f {
			*f = r
			changed++
		}
	}
	return changed
}

// Error returns err's message with secrets and the given values removed.
func Error(err error, values ...string) string {
	if err == nil {
		return ""
	}
	return Values(Secrets(err.Error()), values...)
}
