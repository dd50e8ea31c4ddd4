package transport

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teemow/mailout/internal/instrumentation"
	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
)

// Dispatcher sends messages through a primary transport with an optional
// single fallback attempt.
type Dispatcher struct {
	primary  Transport
	fallback Transport
	builder  *message.Builder
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	// skipped explains why an enabled fallback was not set up.
	skipped string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFallback sets the transport tried once when the primary fails. A nil
// transport disables the fallback.
func WithFallback(t Transport) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = t }
}

// WithBuilder replaces the message builder.
func WithBuilder(b *message.Builder) DispatcherOption {
	return func(d *Dispatcher) { d.builder = b }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics records send and fallback metrics.
func WithMetrics(m *instrumentation.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher sending through primary.
func NewDispatcher(primary Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		primary: primary,
		builder: message.NewBuilder(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send validates msg, builds the payload and delivers it. When the primary
// transport fails and a fallback is set, the fallback is tried exactly once;
// if it fails too the error is a *mailerr.FallbackError carrying both causes.
func (d *Dispatcher) Send(ctx context.Context, msg *message.OutgoingMessage) (Result, error) {
	if msg == nil {
		return Result{}, mailerr.Validation("transport.send", "message is required")
	}
	if strings.TrimSpace(msg.From) == "" {
		return Result{}, mailerr.Validation("transport.send", "sender is required")
	}
	if strings.TrimSpace(msg.To) == "" {
		return Result{}, mailerr.Validation("transport.send", "recipient is required")
	}

	payload, err := d.builder.Build(msg)
	if err != nil {
		return Result{}, err
	}

	res, primaryErr := d.attempt(ctx, d.primary, payload, false)
	if primaryErr == nil {
		return res, nil
	}
	if d.fallback == nil {
		if d.skipped != "" {
			d.logger.Warn("Fallback enabled but not attempted",
				logging.Operation("transport.send"),
				slog.String("reason", d.skipped))
			d.metrics.RecordFallback(ctx, instrumentation.ResultSkipped)
		}
		return Result{}, primaryErr
	}

	d.logger.Warn("Primary transport failed, trying fallback",
		logging.Operation("transport.send"),
		slog.String("primary", d.primary.Name()),
		slog.String("fallback", d.fallback.Name()),
		logging.Err(primaryErr))

	res, fallbackErr := d.attempt(ctx, d.fallback, payload, true)
	if fallbackErr != nil {
		d.metrics.RecordFallback(ctx, instrumentation.ResultFailure)
		return Result{}, &mailerr.FallbackError{
			PrimaryName:  d.primary.Name(),
			Primary:      primaryErr,
			FallbackName: d.fallback.Name(),
			Fallback:     fallbackErr,
		}
	}
	d.metrics.RecordFallback(ctx, instrumentation.ResultSuccess)
	res.Fallback = true
	return res, nil
}

// attempt makes one send through t, with a span, a metric and a log line.
func (d *Dispatcher) attempt(ctx context.Context, t Transport, p *message.Payload, fallback bool) (Result, error) {
	ctx, span := instrumentation.StartSendSpan(ctx, t.Name(), fallback, len(p.Recipients))
	defer span.End()

	rec := instrumentation.NewSendAttempt(t.Name(), p.Sender, strings.Join(p.Recipients, ","), fallback).
		WithSpanContext(ctx)

	res, err := t.Send(ctx, p)
	if err != nil && mailerr.KindOf(err) == nil {
		err = mailerr.Transport("transport."+t.Name(), err)
	}
	if err == nil && res.Transport == "" {
		res.Transport = t.Name()
	}

	rec.Complete(res.ID, err).Log(ctx, d.logger)
	d.metrics.RecordSend(ctx, t.Name(), rec.Status(), rec.Duration)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return Result{}, err
	}
	instrumentation.SetSpanSuccess(span)
	return res, nil
}
