// Package instrumentation provides OpenTelemetry metrics and tracing for mail
// dispatch.
//
// # Metrics
//
//   - mail_send_total: Counter of send attempts by transport and status
//   - mail_send_duration_seconds: Histogram of send attempt durations
//   - mail_fallback_total: Counter of fallback attempts by result
//   - oauth_auth_total: Counter of interactive authorizations by result
//
// # Tracing
//
// Each send attempt runs in a span named mail.send.<transport>. The
// authorization flow runs in oauth.authorize.
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (otlp, stdout, none, default: none)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Use plain HTTP for OTLP (default: false)
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: mailout)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordSend(ctx, "gmail", instrumentation.StatusSuccess, time.Since(start))
//
// All Metrics methods are safe to call on a nil or uninitialized *Metrics.
package instrumentation
