package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/mailout/internal/logging"
)

// SendAttempt captures one delivery attempt for the send log.
//
// Recipient and Sender are full addresses. LogAttrs only emits the sender
// domain and a hash of the recipient.
type SendAttempt struct {
	Transport string
	Sender    string
	Recipient string
	Fallback  bool

	StartTime time.Time
	Duration  time.Duration
	MessageID string
	Err       error

	TraceID string
}

// NewSendAttempt starts timing an attempt through transport.
func NewSendAttempt(transport, sender, recipient string, fallback bool) *SendAttempt {
	return &SendAttempt{
		Transport: transport,
		Sender:    sender,
		Recipient: recipient,
		Fallback:  fallback,
		StartTime: time.Now(),
	}
}

// WithSpanContext copies the trace id from the current span.
func (a *SendAttempt) WithSpanContext(ctx context.Context) *SendAttempt {
	a.TraceID = GetTraceID(ctx)
	return a
}

// Complete stops the timer and records the outcome.
func (a *SendAttempt) Complete(messageID string, err error) *SendAttempt {
	a.Duration = time.Since(a.StartTime)
	a.MessageID = messageID
	a.Err = err
	return a
}

// Status returns StatusSuccess or StatusError.
func (a *SendAttempt) Status() string {
	if a.Err == nil {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the attributes logged for the attempt.
func (a *SendAttempt) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("sender_domain", logging.ExtractDomain(a.Sender)),
		logging.UserHash(a.Recipient),
		slog.Duration(logging.KeyDuration, a.Duration),
		logging.Status(a.Status()),
	}
	if a.Fallback {
		attrs = append(attrs, slog.Bool("fallback", true))
	}
	if a.MessageID != "" {
		attrs = append(attrs, logging.MessageID(a.MessageID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.Err != nil {
		attrs = append(attrs, logging.Err(a.Err))
	}
	return attrs
}

// Log writes the attempt at info on success and warn on failure.
func (a *SendAttempt) Log(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	msg := "mail_sent"
	if a.Err != nil {
		level = slog.LevelWarn
		msg = "mail_send_failed"
	}
	logging.WithTransport(logger, a.Transport).LogAttrs(ctx, level, msg, a.LogAttrs()...)
}
