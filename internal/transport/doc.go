// Package transport delivers built MIME payloads.
//
// A Transport submits one payload and reports an id. The variants are:
//   - gmail: users.messages.send with the base64url raw message
//   - smtp: direct submission over net/smtp, optionally DKIM signed
//   - ses: AWS SES v2 SendEmail with raw content
//   - stdout: writes the MIME document to a writer
//
// The Dispatcher validates the sender and recipient before anything touches
// the network, builds the payload once, sends it through the primary
// transport and, when a fallback is configured, makes exactly one attempt
// through the fallback after a primary failure.
package transport
