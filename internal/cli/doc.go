// Package cli wires together the Cobra command tree for the promptcoach
// binary.
//
// It defines the root command and all subcommands (review, compare, batch,
// personas, config, models, cache, usage, serve, version), binds flags,
// loads configuration, builds the review engine with its cache and usage
// ledger, and maps failures to deterministic exit codes:
//
//	0  success
//	2  usage error (bad flags or arguments, no prompt)
//	3  configuration or credential error
//	4  runtime failure (provider fault, malformed response, I/O)
//	5  rate limited or timed out; try again later
package cli
