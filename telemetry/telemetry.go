// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	envEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envInsecure   = "OTEL_EXPORTER_OTLP_INSECURE"
	envSampleRate = "OTEL_TRACES_SAMPLE_RATE"
)

type Config struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector address. Empty keeps spans in
	// process, which still gives log entries trace and span ids.
	Endpoint     string
	Insecure     bool
	SampleRate   float64
	BatchTimeout time.Duration
}

// ConfigFromEnv reads the OTEL_* variables for service.
func ConfigFromEnv(service string) (Config, error) {
	cfg := Config{ServiceName: service, Endpoint: os.Getenv(envEndpoint), SampleRate: 1, BatchTimeout: 5 * time.Second}
	if v := os.Getenv(envInsecure); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", envInsecure, err)
		}
		cfg.Insecure = b
	}
	if v := os.Getenv(envSampleRate); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return cfg, fmt.Errorf("invalid %s %q", envSampleRate, v)
		}
		cfg.SampleRate = f
	}
	return cfg, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// Setup installs the global tracer provider. Callers shut it down on exit.
func Setup(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}
	if cfg.Endpoint != "" {
		exOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exOpts = append(exOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exOpts...)
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}
