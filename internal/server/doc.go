// Package server exposes the review engine as a small JSON API built on
// fiber.
//
// Routes:
//
//	GET  /health         dependency status
//	GET  /v1/personas    the four reviewer personas
//	GET  /v1/providers   providers, models and pricing
//	POST /v1/reviews     review one prompt
//	POST /v1/compare     review one prompt with several personas or providers
//	GET  /v1/usage       token and cost totals for the caller (X-User-ID)
//
// Classified provider errors map to 400 (configuration), 429 (rate limit
// or quota), 504 (timeout), 502 (upstream failure or unparseable output)
// and 408 (cancelled). Parse failures include the raw provider text.
package server
