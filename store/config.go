package store

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies the store's tracer and meter.
const instrumentationName = "github.com/jacentio/storefront/store"

// Config holds configuration for the Store.
type Config struct {
	// Logger receives transaction outcomes.
	// Default: slog.Default()
	Logger *slog.Logger

	// TracerProvider creates the span wrapping each transaction.
	// Default: the global otel provider
	TracerProvider trace.TracerProvider

	// MeterProvider creates the transaction outcome counter.
	// Default: the global otel provider
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logger:         slog.Default(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}
}

// validate fills unset fields with their defaults.
func (c *Config) validate() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	if c.MeterProvider == nil {
		c.MeterProvider = otel.GetMeterProvider()
	}
}
