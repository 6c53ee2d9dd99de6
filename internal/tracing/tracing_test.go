package tracing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validate(t *testing.T) {
	base := Config{ServiceName: "adoptfeed-test", Enabled: true, SamplingRate: 0.1}

	tests := []struct {
		name   string
		modify func(c *Config)
		want   error
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "grpc exporter", modify: func(c *Config) { c.ExporterType = ExporterOTLPGRPC }},
		{name: "disabled ignores everything", modify: func(c *Config) {
			*c = Config{SamplingRate: 7, ExporterType: "zipkin"}
		}},
		{name: "missing service name", modify: func(c *Config) { c.ServiceName = "" }, want: ErrMissingServiceName},
		{name: "negative rate", modify: func(c *Config) { c.SamplingRate = -0.1 }, want: ErrInvalidSamplingRate},
		{name: "rate above one", modify: func(c *Config) { c.SamplingRate = 1.5 }, want: ErrInvalidSamplingRate},
		{name: "unknown exporter", modify: func(c *Config) { c.ExporterType = "zipkin" }, want: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "adoptfeed-test"}, discardLogger())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if provider.Tracer("feed") == nil {
		t.Error("disabled provider should still hand out a tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_RejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, ServiceName: "adoptfeed-test", ExporterType: "jaeger"}, discardLogger())
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("NewProvider() error = %v, want ErrUnknownExporter", err)
	}
}

// Exporters connect lazily, so construction succeeds without a collector.
func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		exporter string
		endpoint string
		rate     float64
	}{
		{exporter: ExporterOTLPHTTP, endpoint: "localhost:4318", rate: 0.1},
		{exporter: ExporterOTLPGRPC, endpoint: "localhost:4317", rate: 1},
		{exporter: "", rate: 0},
	}

	for _, tt := range tests {
		t.Run("exporter="+exporterName(Config{ExporterType: tt.exporter}), func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:  "adoptfeed-test",
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporter,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.rate,
				InsecureMode: true,
			}, discardLogger())
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}

			_, span := provider.Tracer("feed").Start(context.Background(), "feed.get")
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			// Flushing to an absent collector may fail; the provider must still stop.
			_ = provider.Shutdown(ctx)
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "ParentBased{root:AlwaysOnSampler"},
		{rate: 0, want: "ParentBased{root:AlwaysOffSampler"},
		{rate: 0.25, want: "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := newSampler(tt.rate).Description(); !strings.HasPrefix(got, tt.want) {
				t.Errorf("newSampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
			}
		})
	}
}

func TestNewResource(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{version: "", want: "dev"},
		{version: "1.4.0", want: "1.4.0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			res, err := newResource(Config{ServiceName: "adoptfeed-test", ServiceVersion: tt.version, Environment: "test"})
			if err != nil {
				t.Fatalf("newResource() error = %v", err)
			}
			attrs := make(map[string]string)
			for _, kv := range res.Attributes() {
				attrs[string(kv.Key)] = kv.Value.Emit()
			}
			if attrs["service.version"] != tt.want {
				t.Errorf("service.version = %q, want %q", attrs["service.version"], tt.want)
			}
			if attrs["service.name"] != "adoptfeed-test" {
				t.Errorf("service.name = %q", attrs["service.name"])
			}
			if attrs["environment"] != "test" {
				t.Errorf("environment = %q", attrs["environment"])
			}
		})
	}
}
