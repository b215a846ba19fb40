package observability

import (
	"context"
	"errors"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config selects what the Provider exports.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// EnablePrometheus registers an exporter so /metrics has something to
	// serve. Without it, instruments still work but nothing is exported.
	EnablePrometheus bool

	// ProcessCollectors adds Go runtime and process metrics to /metrics.
	ProcessCollectors bool

	// SetGlobal installs the meter provider with otel.SetMeterProvider.
	SetGlobal bool
}

// DefaultConfig exports to Prometheus under the "bytelens" service name.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:       "bytelens",
		ServiceVersion:    "dev",
		EnablePrometheus:  true,
		ProcessCollectors: true,
		SetGlobal:         true,
	}
}

// Provider owns the meter provider, the bytelens instruments and, when
// Prometheus export is on, a private registry.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	Metrics       *Metrics

	registry *promclient.Registry
}

// NewProvider builds a Provider from cfg; nil means DefaultConfig.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		)),
	}

	p := &Provider{}
	if cfg.EnablePrometheus {
		p.registry = promclient.NewRegistry()
		if cfg.ProcessCollectors {
			p.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		exporter, err := prometheus.New(prometheus.WithRegisterer(p.registry))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(exporter))
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(opts...)

	if cfg.SetGlobal {
		otel.SetMeterProvider(p.MeterProvider)
	}

	m, err := NewMetrics(p.MeterProvider)
	if err != nil {
		return nil, errors.Join(err, p.MeterProvider.Shutdown(context.Background()))
	}
	p.Metrics = m

	return p, nil
}

// PrometheusHandler serves the registry, or 404 when export is off.
func (p *Provider) PrometheusHandler() http.Handler {
	if p.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.MeterProvider == nil {
		return nil
	}
	return p.MeterProvider.Shutdown(ctx)
}
