package observability

import (
	"context"
	"time"
)

// BackendMetrics reports record store activity through Metrics. It
// satisfies backend.Metrics.
type BackendMetrics struct {
	m *Metrics
}

func NewBackendMetrics(m *Metrics) *BackendMetrics {
	return &BackendMetrics{m: m}
}

func (b *BackendMetrics) IncStoreSuccess() { b.m.RecordStored(context.Background()) }

func (b *BackendMetrics) IncStoreError() { b.m.RecordStoreError(context.Background()) }

func (b *BackendMetrics) ObserveStoreDuration(d time.Duration) {
	b.m.RecordStoreDuration(context.Background(), d)
}

func (b *BackendMetrics) IncCacheHit() { b.m.RecordLookup(context.Background(), true) }

func (b *BackendMetrics) IncCacheMiss() { b.m.RecordLookup(context.Background(), false) }

// SetQueueDepth does nothing; the queue depth gauge is read through
// Metrics.RegisterQueueDepthCallback instead.
func (b *BackendMetrics) SetQueueDepth(int) {}
