package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrTransport = "transport"
	attrStatus    = "status"
	attrResult    = "result"
)

// Metrics provides methods for recording dispatch metrics.
type Metrics struct {
	sendTotal      metric.Int64Counter
	sendDuration   metric.Float64Histogram
	fallbackTotal  metric.Int64Counter
	oauthAuthTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.sendTotal, err = meter.Int64Counter(
		"mail_send_total",
		metric.WithDescription("Total number of mail send attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_send_total counter: %w", err)
	}

	m.sendDuration, err = meter.Float64Histogram(
		"mail_send_duration_seconds",
		metric.WithDescription("Mail send attempt duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_send_duration_seconds histogram: %w", err)
	}

	m.fallbackTotal, err = meter.Int64Counter(
		"mail_fallback_total",
		metric.WithDescription("Total number of fallback transport attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_fallback_total counter: %w", err)
	}

	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of interactive OAuth authorizations"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	return m, nil
}

// RecordSend records one send attempt through transport.
// Status should be StatusSuccess or StatusError.
func (m *Metrics) RecordSend(ctx context.Context, transport, status string, duration time.Duration) {
	if m == nil || m.sendTotal == nil || m.sendDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTransport, transport),
		attribute.String(attrStatus, status),
	)
	m.sendTotal.Add(ctx, 1, attrs)
	m.sendDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFallback records a fallback attempt.
// Result should be one of: "success", "failure", "skipped"
func (m *Metrics) RecordFallback(ctx context.Context, result string) {
	if m == nil || m.fallbackTotal == nil {
		return // Instrumentation not initialized
	}
	m.fallbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthAuth records an interactive authorization with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
