// Package persona maps a skill-level variant to the instructions, sampling
// parameters and fallback review used for a prompt review.
//
// The set of personas is closed: Beginner, Intermediate, Advanced and
// Interviewer. Adding one means adding a table entry. Lookups are pure, so
// tests can assert exact template content without a provider.
package persona
