// Package logging provides structured logging utilities for mailout.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and makes sure recipient addresses and OAuth tokens never reach
// the log output in clear text.
//
// # Usage Patterns
//
// Build the process logger once:
//
//	logger, err := logging.New(os.Stderr, "info", "text")
//
// Attach send attributes:
//
//	logger = logging.WithTransport(logger, "gmail")
//	logger.Info("message sent",
//	    logging.UserHash(msg.To),
//	    logging.MessageID(id))
//
// # Security Considerations
//
//   - Recipient addresses are hashed so log lines can be correlated without exposing PII
//   - Tokens are reduced to a length indicator
package logging
