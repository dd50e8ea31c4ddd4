// Package config loads mailout settings.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. the YAML core config (bmad-core/core-config.yaml unless a path is given)
//  3. a .env file, which never overrides variables already in the environment
//  4. process environment variables
//
// Command-line flags are applied on top by the cmd package.
package config
