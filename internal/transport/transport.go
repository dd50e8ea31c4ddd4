package transport

import (
	"context"

	"github.com/teemow/mailout/internal/message"
)

// Transport submits a payload to a remote system.
type Transport interface {
	// Name identifies the transport in logs, metrics and errors.
	Name() string

	// Send delivers p. It makes a single attempt.
	Send(ctx context.Context, p *message.Payload) (Result, error)
}

// Result is the outcome of a successful send.
type Result struct {
	// ID is the provider's message id, or the Message-ID header for
	// transports without one.
	ID string
	// Transport is the name of the transport that delivered the message.
	Transport string
	// Fallback reports whether the fallback transport delivered it.
	Fallback bool
}
