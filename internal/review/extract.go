package review

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/dshills/promptcoach/internal/providers"
)

// maxScanStarts bounds how many '{' positions Extract tries inside prose.
const maxScanStarts = 32

// ErrMalformed marks a response that looks like JSON but cannot be decoded.
var ErrMalformed = errors.New("response contains no decodable JSON object")

// Extract locates a JSON object in raw. A fenced code block is unwrapped
// first; otherwise the whole text and then each embedded '{' is tried.
func Extract(raw string) (map[string]any, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}

	if body, ok := fencedBlock(text); ok {
		if obj, ok := decodeObject(body); ok {
			return obj, true
		}
	}
	if obj, ok := decodeObject(text); ok {
		return obj, true
	}

	start := strings.IndexByte(text, '{')
	for tries := 0; start >= 0 && tries < maxScanStarts; tries++ {
		var obj map[string]any
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		if err := dec.Decode(&obj); err == nil && obj != nil {
			return obj, true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// CheckStructure is the retry layer's check for malformed output. Blank
// text, or text that tries to be JSON and fails, is a parse error. Text tries
// to be JSON when it opens with a brace or carries a code fence. Plain prose
// passes, braces included, and is later treated as unstructured feedback.
func CheckStructure(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return &providers.Error{Kind: providers.KindParse, Op: "extract", Raw: raw, Err: errors.New("empty response")}
	}
	if _, ok := Extract(text); ok {
		return nil
	}
	if strings.HasPrefix(text, "{") || strings.Contains(text, "```") {
		return &providers.Error{Kind: providers.KindParse, Op: "extract", Raw: raw, Err: ErrMalformed}
	}
	return nil
}

// fencedBlock returns the body of the first ``` fence, without the
// language tag line.
func fencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	rest = rest[nl+1:]
	end := strings.Index(rest, "```")
	if end < 0 {
		// Unterminated fence: use everything after the opener.
		return rest, true
	}
	return rest[:end], true
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
