package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/mailout/internal/instrumentation"
	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
)

// countingTransport records every payload it is asked to send.
type countingTransport struct {
	name string
	id   string
	err  error

	mu       sync.Mutex
	payloads []*message.Payload
}

func (c *countingTransport) Name() string { return c.name }

func (c *countingTransport) Send(_ context.Context, p *message.Payload) (Result, error) {
	c.mu.Lock()
	c.payloads = append(c.payloads, p)
	c.mu.Unlock()
	if c.err != nil {
		return Result{}, c.err
	}
	return Result{ID: c.id}, nil
}

func (c *countingTransport) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func testMessage() *message.OutgoingMessage {
	return &message.OutgoingMessage{
		From:    "sender@example.com",
		To:      "rcpt@example.org",
		Subject: "Hi",
		Text:    "body",
	}
}

func skipFallback(reason string) DispatcherOption {
	return func(d *Dispatcher) { d.skipped = reason }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func fallbackCount(t *testing.T, reader *sdkmetric.ManualReader, result string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mail_fallback_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("result")); ok && v.AsString() == result {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func testMetrics(t *testing.T) (*instrumentation.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := instrumentation.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestDispatcher_Validation(t *testing.T) {
	tests := []struct {
		name string
		msg  *message.OutgoingMessage
	}{
		{"nil message", nil},
		{"empty recipient", &message.OutgoingMessage{From: "a@example.com", To: "  "}},
		{"empty sender", &message.OutgoingMessage{To: "b@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &countingTransport{name: "gmail"}
			fallback := &countingTransport{name: "smtp"}
			d := NewDispatcher(primary, WithFallback(fallback), WithLogger(discardLogger()))

			_, err := d.Send(context.Background(), tt.msg)
			require.Error(t, err)
			assert.ErrorIs(t, err, mailerr.ErrValidation)
			assert.Equal(t, 0, primary.calls())
			assert.Equal(t, 0, fallback.calls())
		})
	}
}

func TestDispatcher_PrimarySuccess(t *testing.T) {
	primary := &countingTransport{name: "gmail", id: "g-1"}
	fallback := &countingTransport{name: "smtp"}
	d := NewDispatcher(primary, WithFallback(fallback), WithLogger(discardLogger()))

	res, err := d.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, Result{ID: "g-1", Transport: "gmail"}, res)
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 0, fallback.calls())
}

func TestDispatcher_AttemptLogsCarryTransport(t *testing.T) {
	var logs bytes.Buffer
	primary := &countingTransport{name: "gmail", err: errors.New("quota exceeded")}
	fallback := &countingTransport{name: "smtp", id: "<id@example.com>"}
	d := NewDispatcher(primary, WithFallback(fallback),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	_, err := d.Send(context.Background(), testMessage())
	require.NoError(t, err)

	var failed, sent map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		switch entry["msg"] {
		case "mail_send_failed":
			failed = entry
		case "mail_sent":
			sent = entry
		}
		assert.LessOrEqual(t, bytes.Count(line, []byte(`"transport":`)), 1)
	}
	require.NotNil(t, failed)
	require.NotNil(t, sent)
	assert.Equal(t, "gmail", failed[logging.KeyTransport])
	assert.Equal(t, "smtp", sent[logging.KeyTransport])
}

func TestDispatcher_FallbackSuccess(t *testing.T) {
	m, reader := testMetrics(t)
	var logs bytes.Buffer
	primary := &countingTransport{name: "gmail", err: mailerr.Auth("google.authorize", errors.New("timed out"))}
	fallback := &countingTransport{name: "smtp", id: "<id@example.com>"}
	d := NewDispatcher(primary,
		WithFallback(fallback),
		WithMetrics(m),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	res, err := d.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "smtp", res.Transport)
	assert.Equal(t, "<id@example.com>", res.ID)
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 1, fallback.calls())

	// Both attempts carry the same document.
	assert.Same(t, primary.payloads[0], fallback.payloads[0])

	assert.Contains(t, logs.String(), "Primary transport failed, trying fallback")
	assert.Equal(t, int64(1), fallbackCount(t, reader, instrumentation.ResultSuccess))
}

func TestDispatcher_BothFail(t *testing.T) {
	m, reader := testMetrics(t)
	primary := &countingTransport{name: "gmail", err: errors.New("quota exceeded")}
	fallback := &countingTransport{name: "smtp", err: errors.New("connection refused")}
	d := NewDispatcher(primary, WithFallback(fallback), WithMetrics(m), WithLogger(discardLogger()))

	_, err := d.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerr.ErrTransport)

	var fe *mailerr.FallbackError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "gmail", fe.PrimaryName)
	assert.Equal(t, "smtp", fe.FallbackName)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 1, fallback.calls())
	assert.Equal(t, int64(1), fallbackCount(t, reader, instrumentation.ResultFailure))
}

func TestDispatcher_NoFallback(t *testing.T) {
	primary := &countingTransport{name: "gmail", err: mailerr.Auth("google.authorize", errors.New("denied"))}
	d := NewDispatcher(primary, WithLogger(discardLogger()))

	_, err := d.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerr.ErrAuth)
	assert.Equal(t, 1, primary.calls())
}

func TestDispatcher_SkippedFallback(t *testing.T) {
	m, reader := testMetrics(t)
	var logs bytes.Buffer
	primary := &countingTransport{name: "gmail", err: errors.New("boom")}
	d := NewDispatcher(primary,
		skipFallback("smtp fallback is not configured"),
		WithMetrics(m),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	_, err := d.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerr.ErrTransport)

	var fe *mailerr.FallbackError
	assert.False(t, errors.As(err, &fe))
	assert.Contains(t, logs.String(), "smtp fallback is not configured")
	assert.Equal(t, int64(1), fallbackCount(t, reader, instrumentation.ResultSkipped))
}
