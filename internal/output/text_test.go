package output

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/promptcoach/internal/review"
)

func TestTextWriter_Result(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextWriter{}).WriteResult(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteResult error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Prompt review: Beginner Guide",
		"Provider: openai (gpt-4o)",
		"clarity      ████████░░  8.0",
		"average 4.2 | strongest clarity (8.0) | weakest specificity (2.0)",
		"Suggested prompt:\n    Write a 12-line poem",
		"  1. Who is the audience?",
		"  - Specify the length",
		"Feedback:",
		"missing ratings.context",
		"Tokens: 120 in / 80 out | cost $0.0011 | attempts 1",
		"Completed in 950ms (LLM: 900ms)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestTextWriter_Fallback(t *testing.T) {
	res := sampleResult()
	res.AIUsed = false
	res.Error = "anthropic: timeout"
	res.Usage = review.Usage{}

	var buf bytes.Buffer
	if err := (&TextWriter{}).WriteResult(&buf, res); err != nil {
		t.Fatalf("WriteResult error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Fallback review") || !strings.Contains(out, "Reason: anthropic: timeout") {
		t.Errorf("fallback output:\n%s", out)
	}
	if strings.Contains(out, "Tokens:") {
		t.Error("fallback output should not report tokens")
	}
}

func TestTextWriter_Comparison(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextWriter{}).WriteComparison(&buf, sampleComparison()); err != nil {
		t.Fatalf("WriteComparison error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Prompt comparison: 3 reviews", "interviewer", "error: openai: rate_limit", "Agreed refinements:", "Only advanced:", "Use a haiku"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestTextWriter_Batch(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextWriter{}).WriteBatch(&buf, sampleComparison().Outcomes); err != nil {
		t.Fatalf("WriteBatch error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "[1/3] beginner") || !strings.Contains(out, "3 reviews, 1 failed") {
		t.Errorf("batch output:\n%s", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTextWriter_PropagatesWriteError(t *testing.T) {
	if err := (&TextWriter{}).WriteResult(failingWriter{}, sampleResult()); err == nil {
		t.Error("expected the first write error")
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if got := wrapText("short", 20); len(got) != 1 || got[0] != "short" {
		t.Errorf("wrapText(short) = %v", got)
	}
}

func TestRatingBar(t *testing.T) {
	tests := map[float64]string{
		0:   "░░░░░░░░░░",
		5:   "█████░░░░░",
		10:  "██████████",
		7.4: "███████░░░",
	}
	for v, want := range tests {
		if got := ratingBar(v); got != want {
			t.Errorf("ratingBar(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestGetWriter(t *testing.T) {
	for _, f := range append(Formats(), "", "md") {
		if _, err := GetWriter(f); err != nil {
			t.Errorf("GetWriter(%q) error: %v", f, err)
		}
	}
	if _, err := GetWriter("sarif"); err == nil {
		t.Error("GetWriter(sarif) should fail")
	}
}

func TestWriteResult_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.json")
	if err := WriteResult(sampleResult(), "json", path); err != nil {
		t.Fatalf("WriteResult error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"requestId": "req-1"`) {
		t.Errorf("file content:\n%s", data)
	}
	if err := WriteResult(sampleResult(), "xml", path); err == nil {
		t.Error("unknown format should fail")
	}
}
