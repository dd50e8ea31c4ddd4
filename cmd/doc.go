// Package cmd implements the command-line interface for mailout.
//
// This package provides the following commands:
//   - send: Send a single message built from flags and environment
//   - send-template: Render an HTML template with variables and send it
//   - bulk: Send a rendered template for each row of a CSV or XLSX file
//   - smtp-test: Send a test message over SMTP only
//   - auth: Run the Gmail OAuth2 authorization and cache the token
//   - version: Display version information
//
// Every sending command goes through the configured primary transport and,
// when enabled, one fallback attempt.
package cmd
