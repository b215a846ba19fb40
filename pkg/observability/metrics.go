// Package observability exports ByteLens metrics through OpenTelemetry and
// serves health checks.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/grokify/bytelens/pkg/scan"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/grokify/bytelens"

// Where an analysis came from, used as the "source" attribute.
const (
	SourceCLI  = "cli"
	SourceScan = "scan"
	SourceAPI  = "api"
)

// Metrics holds the ByteLens instruments.
type Metrics struct {
	meter metric.Meter

	// Analysis
	AnalysesTotal    metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	AnalyzedBytes    metric.Int64Histogram
	Entropy          metric.Float64Histogram
	Truncated        metric.Int64Counter
	HiddenCharacters metric.Int64Counter

	// API
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ActiveRequests  metric.Int64UpDownCounter

	// Record stores
	RecordsStored metric.Int64Counter
	StoreErrors   metric.Int64Counter
	StoreDuration metric.Float64Histogram
	StoreLookups  metric.Int64Counter
}

// instruments creates instruments on one meter and collects their errors
// so NewMetrics can check once at the end.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (b *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.errs = append(b.errs, err)
	return c
}

func (b *instruments) gauge(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.errs = append(b.errs, err)
	return c
}

func (b *instruments) millis(name, desc string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("ms")}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.errs = append(b.errs, err)
	return h
}

// NewMetrics registers the ByteLens instruments with meterProvider, or with
// the global provider when it is nil.
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	b := &instruments{meter: meterProvider.Meter(meterName)}

	m := &Metrics{
		meter: b.meter,

		AnalysesTotal: b.counter("bytelens.analyses.total", "Buffers analyzed", "{analysis}"),
		AnalysisDuration: b.millis("bytelens.analysis.duration", "Time to analyze one buffer",
			0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000),
		Truncated:        b.counter("bytelens.analyses.truncated", "Analyses that read only a prefix of the input", "{analysis}"),
		HiddenCharacters: b.counter("bytelens.hidden_characters.found", "Hidden characters found in text", "{character}"),

		RequestsTotal: b.counter("bytelens.http.requests.total", "API requests served", "{request}"),
		RequestDuration: b.millis("bytelens.http.request.duration", "API request latency",
			1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
		ActiveRequests: b.gauge("bytelens.http.requests.active", "API requests in flight", "{request}"),

		RecordsStored: b.counter("bytelens.records.stored", "Records written to storage", "{record}"),
		StoreErrors:   b.counter("bytelens.records.store.errors", "Failed or dropped record writes", "{error}"),
		StoreDuration: b.millis("bytelens.records.store.duration", "Record write latency"),
		StoreLookups:  b.counter("bytelens.records.lookups", "Record lookups by ID", "{lookup}"),
	}

	var err error
	m.AnalyzedBytes, err = b.meter.Int64Histogram("bytelens.analysis.size",
		metric.WithDescription("Bytes analyzed per buffer"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 1000, 10000, 100000, 1000000, 10000000))
	b.errs = append(b.errs, err)

	m.Entropy, err = b.meter.Float64Histogram("bytelens.analysis.entropy",
		metric.WithDescription("Shannon entropy of analyzed buffers in bits per byte"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 7.5, 8))
	b.errs = append(b.errs, err)

	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterQueueDepthCallback reports fn as the async write queue depth
// gauge.
func (m *Metrics) RegisterQueueDepthCallback(fn func() int64) error {
	_, err := m.meter.Int64ObservableGauge("bytelens.records.queue.depth",
		metric.WithDescription("Records waiting in the async write queue"),
		metric.WithUnit("{record}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn())
			return nil
		}))
	return err
}

// RecordAnalysis records one analysis result from source.
func (m *Metrics) RecordAnalysis(ctx context.Context, rec *scan.Record, source string) {
	format := rec.FormatName()
	if format == "" {
		format = "unknown"
	}
	bySource := metric.WithAttributes(attribute.String("source", source))
	full := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("format", format),
		attribute.String("encoding", string(rec.Analysis.Encoding)),
	)

	m.AnalysesTotal.Add(ctx, 1, full)
	m.AnalysisDuration.Record(ctx, rec.DurationMs, full)
	m.AnalyzedBytes.Record(ctx, int64(rec.Analysis.Size), bySource)
	m.Entropy.Record(ctx, rec.Stats.Entropy, bySource)
	if rec.Truncated {
		m.Truncated.Add(ctx, 1, bySource)
	}

	for _, hit := range rec.Analysis.HiddenCharacters {
		m.HiddenCharacters.Add(ctx, 1, metric.WithAttributes(attribute.String("name", hit.Name)))
	}
}

// RecordRequest records a finished API request. route is the matched mux
// pattern, not the raw path.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, statusCode int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", statusCode),
		attribute.String("status_class", statusClass(statusCode)),
	)
	m.RequestsTotal.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, millis(d), attrs)
}

func (m *Metrics) RecordStored(ctx context.Context) { m.RecordsStored.Add(ctx, 1) }

func (m *Metrics) RecordStoreError(ctx context.Context) { m.StoreErrors.Add(ctx, 1) }

func (m *Metrics) RecordStoreDuration(ctx context.Context, d time.Duration) {
	m.StoreDuration.Record(ctx, millis(d))
}

func (m *Metrics) RecordLookup(ctx context.Context, found bool) {
	m.StoreLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("found", found)))
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return string(rune('0'+code/100)) + "xx"
}

// MetricsMiddleware counts and times requests handled by next. Requests are
// labelled by the ServeMux pattern they matched, so record IDs in the path
// do not create new series.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		m.ActiveRequests.Add(ctx, 1)
		defer m.ActiveRequests.Add(ctx, -1)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(ctx, r.Method, route, sw.status, time.Since(start))
	})
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
