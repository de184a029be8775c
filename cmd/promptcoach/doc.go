// Promptcoach reviews AI prompts with a choice of coaching personas and
// LLM providers.
//
// Each review rates a prompt on six dimensions, asks clarifying questions,
// suggests refinements and an improved prompt. When no provider is reachable
// the persona's fallback review is returned instead.
//
// Usage:
//
//	promptcoach review "Write a poem"            # review with the default persona
//	promptcoach review -p interviewer -f p.txt   # review a prompt file
//	echo "Summarise this" | promptcoach review   # review from stdin
//	promptcoach compare --personas beginner,advanced "..."
//	promptcoach compare --models anthropic:claude-3-haiku-20240307,openai:gpt-4o "..."
//	promptcoach batch prompts.yaml               # review a list of prompts
//	promptcoach serve --addr :8080               # serve the HTTP API
package main
