// Package redact removes secrets from prompt text before it is sent to any
// LLM provider, and from error messages before they are shown or logged.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, credentialed connection strings, and provider-specific tokens
// (Anthropic, OpenAI, Google, GitHub, Slack). Values redacts known literals
// such as the configured provider key.
package redact
