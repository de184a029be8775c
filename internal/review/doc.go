// Package review turns a prompt, a persona and a provider config into a
// bounded Result.
//
// Engine.Review is the single entry point. It looks up the shared adapter in
// the provider registry, redacts the submission, renders the persona's
// request, and runs one retried call. The raw text then goes through
// Process: Extract locates a JSON object (fenced or embedded), ratings are
// clamped into six fixed dimensions, lists are capped, and free text is
// sanitized. Raw copies of every free-form field are kept untouched.
//
// Sanitization is idempotent. Each Sanitize function applies its rewrite to
// a fixpoint and truncation leaves already-short text alone.
//
// ReviewMany fans reviews out over an errgroup with bounded concurrency;
// ComparePersonas and CompareProviders merge the outcomes into average
// ratings plus consensus and unique refinements.
package review
