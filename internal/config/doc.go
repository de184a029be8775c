// Package config loads and merges promptcoach configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (PROMPTCOACH_PROVIDER, AI_PROVIDER, USE_AI_REVIEW,
//     DEFAULT_PERSONA, provider API keys, REDIS_URL, etc.), including those
//     read from ./.env
//  3. Config file ($XDG_CONFIG_HOME/promptcoach/config.yaml or config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write the config file,
// [SetField] to update a single key, and [Watch] to reload on change.
// Credentials are read from the environment only and never saved.
package config
