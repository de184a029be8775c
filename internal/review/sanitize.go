package review

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFeedbackLimit is the rune cap applied to sanitized feedback.
const DefaultFeedbackLimit = 500

const ellipsis = "..."

var (
	boldStars   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnders  = regexp.MustCompile(`__([^_]+)__`)
	italicStars = regexp.MustCompile(`\*([^*]+)\*`)
	headerMark  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	listMarker  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	whitespace  = regexp.MustCompile(`\s+`)
	fenceOpen   = regexp.MustCompile("^```[\\w-]*\\n?")
	fenceClose  = regexp.MustCompile("\\n?```$")
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	htmlTag     = regexp.MustCompile(`<[^>]+>`)
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
)

// stripEmphasis removes bold and italic markers, keeping the enclosed text.
func stripEmphasis(s string) string {
	s = boldStars.ReplaceAllString(s, "$1")
	s = boldUnders.ReplaceAllString(s, "$1")
	return italicStars.ReplaceAllString(s, "$1")
}

// fixpoint applies step until the text stops changing. After the first pass
// every step only removes text, so the loop ends.
func fixpoint(s string, step func(string) string) string {
	for {
		next := step(s)
		if next == s {
			return s
		}
		s = next
	}
}

// SanitizeFeedback strips markdown, collapses whitespace and caps the
// result at limit runes. A non-positive limit disables the cap.
func SanitizeFeedback(s string, limit int) string {
	s = fixpoint(s, func(s string) string {
		s = headerMark.ReplaceAllString(s, "")
		s = stripEmphasis(s)
		s = whitespace.ReplaceAllString(s, " ")
		return strings.TrimSpace(s)
	})
	return capRunes(s, limit)
}

// SanitizeQuestion cleans one clarifying question. Empty input stays empty.
func SanitizeQuestion(s string) string {
	s = cleanItem(s)
	if s != "" && !strings.HasSuffix(s, "?") {
		s += "?"
	}
	return s
}

// SanitizeRefinement cleans one refinement suggestion and capitalises it.
func SanitizeRefinement(s string) string {
	s = cleanItem(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func cleanItem(s string) string {
	return fixpoint(s, func(s string) string {
		s = listMarker.ReplaceAllString(s, "")
		s = stripEmphasis(s)
		s = whitespace.ReplaceAllString(s, " ")
		return strings.TrimSpace(s)
	})
}

// SanitizeSuggestedPrompt removes code fences, wrapping quotes and runs of
// blank lines. Markdown inside the prompt is left alone since it may be part
// of the prompt itself.
func SanitizeSuggestedPrompt(s string) string {
	return fixpoint(s, func(s string) string {
		s = strings.TrimSpace(s)
		s = fenceOpen.ReplaceAllString(s, "")
		s = fenceClose.ReplaceAllString(s, "")
		s = strings.TrimSpace(s)
		s = trimQuotes(s)
		return blankRuns.ReplaceAllString(s, "\n\n")
	})
}

func trimQuotes(s string) string {
	for _, q := range []string{`"`, `'`, "“"} {
		closer := q
		if q == "“" {
			closer = "”"
		}
		if len(s) >= len(q)+len(closer) && strings.HasPrefix(s, q) && strings.HasSuffix(s, closer) {
			return strings.TrimSpace(s[len(q) : len(s)-len(closer)])
		}
	}
	return s
}

// ForDisplay removes HTML and escapes what remains, for rendering provider
// text inside markup.
func ForDisplay(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = htmlTag.ReplaceAllString(s, "")
	return html.EscapeString(s)
}

// capRunes truncates s to limit runes, ending in an ellipsis. Text already
// within the limit is returned unchanged, which keeps the cap idempotent.
func capRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	if limit <= len(ellipsis) {
		return strings.TrimRightFunc(string(r[:limit]), unicode.IsSpace)
	}
	head := strings.TrimRightFunc(string(r[:limit-len(ellipsis)]), unicode.IsSpace)
	return head + ellipsis
}
