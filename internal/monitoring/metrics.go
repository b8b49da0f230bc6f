package monitoring

import (
	"sync/atomic"
	"time"
)

// Metrics holds pipeline counters exposed on the health endpoint.
type Metrics struct {
	RequestCount      int64
	ErrorCount        int64
	CacheHits         int64
	CacheMisses       int64
	SnapshotDownloads int64
	RecordsParsed     int64
	RowsSkipped       int64
	SignalsEmitted    int64
	FlowRuns          int64
	StartTime         time.Time
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) IncrementRequest()         { atomic.AddInt64(&m.RequestCount, 1) }
func (m *Metrics) IncrementError()           { atomic.AddInt64(&m.ErrorCount, 1) }
func (m *Metrics) IncrementCacheHit()        { atomic.AddInt64(&m.CacheHits, 1) }
func (m *Metrics) IncrementCacheMiss()       { atomic.AddInt64(&m.CacheMisses, 1) }
func (m *Metrics) IncrementDownloads()       { atomic.AddInt64(&m.SnapshotDownloads, 1) }
func (m *Metrics) AddRecordsParsed(n int64)  { atomic.AddInt64(&m.RecordsParsed, n) }
func (m *Metrics) AddRowsSkipped(n int64)    { atomic.AddInt64(&m.RowsSkipped, n) }
func (m *Metrics) AddSignalsEmitted(n int64) { atomic.AddInt64(&m.SignalsEmitted, n) }
func (m *Metrics) IncrementFlowRuns()        { atomic.AddInt64(&m.FlowRuns, 1) }

// GetStats returns a snapshot of all counters for the health endpoint.
func (m *Metrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"request_count":      atomic.LoadInt64(&m.RequestCount),
		"error_count":        atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":         atomic.LoadInt64(&m.CacheHits),
		"cache_misses":       atomic.LoadInt64(&m.CacheMisses),
		"snapshot_downloads": atomic.LoadInt64(&m.SnapshotDownloads),
		"records_parsed":     atomic.LoadInt64(&m.RecordsParsed),
		"rows_skipped":       atomic.LoadInt64(&m.RowsSkipped),
		"signals_emitted":    atomic.LoadInt64(&m.SignalsEmitted),
		"flow_runs":          atomic.LoadInt64(&m.FlowRuns),
		"uptime_seconds":     time.Since(m.StartTime).Seconds(),
	}
}
