// Package cache stores raw provider responses so identical review requests
// skip the network.
//
// Keys are a SHA-256 hash over the provider identity, persona, sampling
// parameters and the rendered request. Only the raw response text is stored;
// processing runs again on every hit, so a processor change never serves
// stale output.
//
// File keeps one JSON file per entry under $XDG_CACHE_HOME/promptcoach (or
// the OS-appropriate equivalent) and skips expired entries on read. Redis
// shares entries between processes and lets the server expire them.
package cache
