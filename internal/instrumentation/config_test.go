package instrumentation

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	for _, k := range []string{"OTEL_SERVICE_NAME", "INSTRUMENTATION_ENABLED", "METRICS_EXPORTER", "TRACING_EXPORTER", "OTEL_TRACES_SAMPLER_ARG"} {
		t.Setenv(k, "")
	}

	config := DefaultConfig()

	if config.ServiceName != "mailout" {
		t.Errorf("expected ServiceName 'mailout', got %q", config.ServiceName)
	}
	if !config.Enabled {
		t.Error("expected Enabled to be true by default")
	}
	if config.MetricsExporter != ExporterNone {
		t.Errorf("expected MetricsExporter 'none', got %q", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("expected TracingExporter 'none', got %q", config.TracingExporter)
	}
	if config.TraceSamplingRate != 1.0 {
		t.Errorf("expected TraceSamplingRate 1.0, got %f", config.TraceSamplingRate)
	}
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	config := DefaultConfig()

	if config.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %q", config.ServiceName)
	}
	if config.Enabled {
		t.Error("expected Enabled to be false")
	}
	if config.MetricsExporter != ExporterOTLP {
		t.Errorf("expected MetricsExporter 'otlp', got %q", config.MetricsExporter)
	}
	if !config.OTLPInsecure {
		t.Error("expected OTLPInsecure to be true")
	}
	if config.TraceSamplingRate != 0.25 {
		t.Errorf("expected TraceSamplingRate 0.25, got %f", config.TraceSamplingRate)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestDefaultConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "maybe")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "lots")

	config := DefaultConfig()
	if !config.Enabled {
		t.Error("expected invalid bool to fall back to true")
	}
	if config.TraceSamplingRate != 1.0 {
		t.Errorf("expected invalid float to fall back to 1.0, got %f", config.TraceSamplingRate)
	}
}
