package review

import (
	"errors"
	"testing"

	"github.com/dshills/promptcoach/internal/providers"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOK   bool
		wantKey  string
		wantJSON string
	}{
		{"plain object", `{"feedback":"ok"}`, true, "feedback", "ok"},
		{"padded object", "\n\n  {\"feedback\":\"ok\"}  \n", true, "feedback", "ok"},
		{"json fence", "```json\n{\"feedback\":\"ok\"}\n```", true, "feedback", "ok"},
		{"bare fence", "```\n{\"feedback\":\"ok\"}\n```", true, "feedback", "ok"},
		{"unterminated fence", "```json\n{\"feedback\":\"ok\"}", true, "feedback", "ok"},
		{"fence after prose", "Here it is:\n```json\n{\"feedback\":\"ok\"}\n```\nThanks", true, "feedback", "ok"},
		{"embedded in prose", `Sure! {"feedback":"ok","ratings":{"clarity":7}} Let me know.`, true, "feedback", "ok"},
		{"skips broken brace", `Note {not json} then {"feedback":"ok"}`, true, "feedback", "ok"},
		{"braces in strings", `{"feedback":"use {curly} braces"}`, true, "feedback", "use {curly} braces"},
		{"prose only", "This is a good prompt.", false, "", ""},
		{"empty", "   ", false, "", ""},
		{"array", `[{"feedback":"ok"}]`, true, "feedback", "ok"},
		{"null", "null", false, "", ""},
		{"truncated", `{"feedback":"ok"`, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := Extract(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Extract ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got, _ := obj[tt.wantKey].(string); got != tt.wantJSON {
				t.Errorf("%s = %q, want %q", tt.wantKey, got, tt.wantJSON)
			}
		})
	}
}

func TestCheckStructure(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantParse bool
	}{
		{"valid object", `{"feedback":"ok"}`, false},
		{"fenced object", "```json\n{\"feedback\":\"ok\"}\n```", false},
		{"prose", "Your prompt is clear but needs an audience.", false},
		{"empty", "", true},
		{"whitespace", " \n\t", true},
		{"broken json", `{"feedback": "ok", "ratings": {`, true},
		{"fence without object", "```\nno json here\n```", true},
		{"prose with placeholders", "Good start. Use {placeholders} such as {topic} so the prompt is reusable.", false},
		{"prose with trailing brace", "Consider a template like Dear {name", false},
		{"broken json after whitespace", "\n  {\"feedback\": ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStructure(tt.input)
			if !tt.wantParse {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if providers.KindOf(err) != providers.KindParse {
				t.Fatalf("err = %v, want parse error", err)
			}
			if raw, ok := providers.RawText(err); !ok || raw != tt.input {
				t.Errorf("RawText = %q, %v; want the input verbatim", raw, ok)
			}
			if !errors.Is(err, providers.ErrParse) {
				t.Error("errors.Is(err, ErrParse) should hold")
			}
		})
	}
}
