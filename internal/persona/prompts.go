package persona

import (
	"fmt"
	"strings"

	"github.com/dshills/promptcoach/internal/providers"
)

const responseContract = `Respond with ONLY a JSON object. No markdown, no preamble. Use exactly these keys:
{
  "suggested_prompt": "an improved version of the prompt",
  "questions": ["clarifying question", "..."],
  "refinements": ["specific improvement", "..."],
  "ratings": {"length": 0-10, "complexity": 0-10, "specificity": 0-10, "clarity": 0-10, "creativity": 0-10, "context": 0-10},
  "feedback": "overall feedback"
}`

const beginnerInstructions = `You are a kind, patient AI prompt engineering mentor for beginners.

Your role:
- Explain ideas in plain, non-technical language and avoid jargon.
- Be supportive. Praise good habits generously and never discourage.
- Ask basic clarifying questions and give foundational guidance.
- Warn about security issues such as prompt injection in simple terms.

When reviewing prompts, focus on fundamental improvements, say why each suggestion helps, and use small examples.

Your tone is warm, friendly, and educational.`

const intermediateInstructions = `You are a knowledgeable AI prompt engineering coach for intermediate users.

Your role:
- Assume basic prompt engineering knowledge and introduce advanced concepts gradually.
- Ask probing questions that build critical thinking.
- Explain security considerations such as prompt injection with technical detail.
- Reference common prompt patterns (few-shot, explicit formats, constraints).

When reviewing prompts, name strengths and weaknesses, give the reasoning behind each suggestion, and keep it actionable.

Your tone is professional, encouraging, and thought-provoking.`

const advancedInstructions = `You are an expert AI prompt engineering mentor for advanced practitioners.

Your role:
- Give sophisticated technical analysis and expect fluency with advanced concepts.
- Ask challenging questions about chain-of-thought, meta-prompting and adversarial inputs.
- Discuss failure modes, token efficiency, scaling across models, and trade-offs.
- Explain security vulnerabilities in depth.

When reviewing prompts, analyse subtle implications and suggest advanced optimisations.

Your tone is direct and intellectually rigorous, yet supportive.`

const interviewerInstructions = `You are a critical interviewer evaluating a candidate's prompt engineering skill.

Your role:
- Be direct and honest, even when it is uncomfortable. Do not sugarcoat.
- Lead with flaws and gaps, then say what would be better.
- Ask tough follow-up questions that make the candidate defend their choices.
- Rate strictly. Professional quality is the bar.

Your tone is professional, direct, critical, and challenging.`

// Submission is the prompt under review plus the author's notes about it.
type Submission struct {
	Text         string               `json:"prompt" yaml:"prompt"`
	Description  string               `json:"description,omitempty" yaml:"description,omitempty"`
	WhatILearned string               `json:"whatILearned,omitempty" yaml:"whatILearned,omitempty"`
	WhatWentWell string               `json:"whatWentWell,omitempty" yaml:"whatWentWell,omitempty"`
	Reflections  string               `json:"reflections,omitempty" yaml:"reflections,omitempty"`
	Tags         []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	Context      []providers.Exchange `json:"context,omitempty" yaml:"context,omitempty"`
}

// UserMessage renders the request body for sub in this persona's voice.
func (p Profile) UserMessage(sub Submission) string {
	if p.interview {
		return p.interviewMessage(sub)
	}

	var b strings.Builder
	b.WriteString("Review this AI prompt and give detailed feedback.\n\n")
	b.WriteString("--- BEGIN PROMPT ---\n")
	b.WriteString(sub.Text)
	b.WriteString("\n--- END PROMPT ---\n")

	section(&b, "Intended purpose", sub.Description)
	section(&b, "What the author learned", sub.WhatILearned)
	section(&b, "What went well", sub.WhatWentWell)
	writeExchanges(&b, sub.Context)

	b.WriteString("\nProvide:\n")
	b.WriteString("1. An improved version of the prompt\n")
	fmt.Fprintf(&b, "2. %d-%d clarifying questions about the author's intent\n", p.Questions[0], p.Questions[1])
	fmt.Fprintf(&b, "3. %d-%d specific refinements\n", p.Refinements[0], p.Refinements[1])
	b.WriteString("4. Ratings from 0 to 10 for length, complexity, specificity, clarity, creativity and context\n")
	b.WriteString("5. Encouraging feedback that includes security considerations such as prompt injection risk\n\n")
	b.WriteString(responseContract)
	return b.String()
}

func (p Profile) interviewMessage(sub Submission) string {
	var b strings.Builder
	b.WriteString("You are conducting a prompt engineering interview. Critically evaluate this prompt.\n\n")
	b.WriteString("--- CANDIDATE PROMPT ---\n")
	b.WriteString(sub.Text)
	b.WriteString("\n--- END PROMPT ---\n\n")

	fmt.Fprintf(&b, "Context: %s\n", orDefault(sub.Description, "none given, which is a red flag"))
	fmt.Fprintf(&b, "Reflections: %s\n", orDefault(sub.Reflections, "none given, the candidate did not think the problem through"))
	tags := strings.Join(sub.Tags, ", ")
	fmt.Fprintf(&b, "Tags: %s\n", orDefault(tags, "none, poor organisation"))
	writeExchanges(&b, sub.Context)

	b.WriteString("\nProvide critical interview feedback:\n")
	b.WriteString("1. A significantly improved version that shows professional quality\n")
	fmt.Fprintf(&b, "2. %d-%d tough interview questions that expose weaknesses\n", p.Questions[0], p.Questions[1])
	fmt.Fprintf(&b, "3. %d-%d critical issues that need fixing\n", p.Refinements[0], p.Refinements[1])
	b.WriteString("4. Strict ratings from 0 to 10, harsh but fair\n")
	b.WriteString("5. Three or four sentences on why this would not pass an interview\n\n")
	b.WriteString(responseContract)
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", title, body)
}

func writeExchanges(b *strings.Builder, ex []providers.Exchange) {
	if len(ex) == 0 {
		return
	}
	b.WriteString("\nEarlier questions and the author's answers:\n")
	for i, e := range ex {
		fmt.Fprintf(b, "Q%d: %s\nA%d: %s\n", i+1, strings.TrimSpace(e.Question), i+1, strings.TrimSpace(e.Answer))
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
