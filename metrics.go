package dap

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the flush-latency histogram buckets in
// nanoseconds, covering 1us to 10s with logarithmic spacing — the same
// shape go-ublk uses for I/O latency, applied here to transport Run()
// calls instead of block-device I/O.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks queueing and flush statistics for a DAP session.
type Metrics struct {
	DPReadsQueued  atomic.Uint64
	DPWritesQueued atomic.Uint64
	APReadsQueued  atomic.Uint64
	APWritesQueued atomic.Uint64

	RunOK   atomic.Uint64
	RunFail atomic.Uint64

	OverrunDetected atomic.Uint64
	RomComponents   atomic.Uint64

	TotalLatencyNs atomic.Uint64
	RunCount       atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// ObserveRun records one transport flush.
func (m *Metrics) ObserveRun(latencyNs uint64, success bool) {
	if success {
		m.RunOK.Add(1)
	} else {
		m.RunFail.Add(1)
	}
	m.TotalLatencyNs.Add(latencyNs)
	m.RunCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// ObserveOverrun records one DP overrun-detected event.
func (m *Metrics) ObserveOverrun() {
	m.OverrunDetected.Add(1)
}

// ObserveRomComponent records one CoreSight component visited during a
// ROM-table walk.
func (m *Metrics) ObserveRomComponent() {
	m.RomComponents.Add(1)
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	DPReadsQueued  uint64
	DPWritesQueued uint64
	APReadsQueued  uint64
	APWritesQueued uint64

	RunOK   uint64
	RunFail uint64

	OverrunDetected uint64
	RomComponents   uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot returns a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DPReadsQueued:   m.DPReadsQueued.Load(),
		DPWritesQueued:  m.DPWritesQueued.Load(),
		APReadsQueued:   m.APReadsQueued.Load(),
		APWritesQueued:  m.APWritesQueued.Load(),
		RunOK:           m.RunOK.Load(),
		RunFail:         m.RunFail.Load(),
		OverrunDetected: m.OverrunDetected.Load(),
		RomComponents:   m.RomComponents.Load(),
	}

	total := m.TotalLatencyNs.Load()
	count := m.RunCount.Load()
	if count > 0 {
		snap.AvgLatencyNs = total / count
	}
	snap.UptimeNs = uint64(time.Now().UnixNano() - m.StartTime.Load())
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// Observer allows pluggable collection of DAP-level events.
type Observer interface {
	ObserveRun(latencyNs uint64, success bool)
	ObserveOverrun()
	ObserveRomComponent()
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRun(uint64, bool)   {}
func (NoOpObserver) ObserveOverrun()           {}
func (NoOpObserver) ObserveRomComponent()      {}
func (NoOpObserver) ObserveQueueDepth(uint32)  {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRun(latencyNs uint64, success bool) {
	o.metrics.ObserveRun(latencyNs, success)
}
func (o *MetricsObserver) ObserveOverrun()      { o.metrics.ObserveOverrun() }
func (o *MetricsObserver) ObserveRomComponent() { o.metrics.ObserveRomComponent() }
func (o *MetricsObserver) ObserveQueueDepth(uint32) {}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
