// Package metrics keeps in-memory timing statistics for datefacet's hot
// paths: scene layout, SVG/PNG rendering, remote facet fetches, store
// queries and page bootstrap.
//
// Collection is on by default; DATEFACET_METRICS=0 turns it off.
//
//	func render() {
//	    defer metrics.Timer(metrics.RenderSVG)()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

// EnvVar disables collection when set to "0".
const EnvVar = "DATEFACET_METRICS"

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv(EnvVar) != "0")
}

// Enabled reports whether metrics are being collected.
func Enabled() bool { return enabled.Load() }

// SetEnabled toggles collection.
func SetEnabled(e bool) { enabled.Store(e) }

// TimingMetric accumulates durations for one named operation. Safe for
// concurrent use.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	min   atomic.Int64 // 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	for {
		old := m.max.Load()
		if ns <= old || m.max.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.min.Load()
		if (old != 0 && ns >= old) || m.min.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name is the metric's reporting name.
func (m *TimingMetric) Name() string { return m.name }

// Count is the number of samples.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a consistent-enough view of the metric.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.total.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.max.Load()) / 1e6,
		MinMs:   float64(m.min.Load()) / 1e6,
	}
}

// Reset clears all samples.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
	m.min.Store(0)
}

// TimingStats is a point-in-time view of a TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts timing m; call the result to record the sample.
func Timer(m *TimingMetric) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

var (
	RenderScene   = newTimingMetric("render_scene")
	RenderSVG     = newTimingMetric("render_svg")
	RenderPNG     = newTimingMetric("render_png")
	FetchFacets   = newTimingMetric("fetch_facets")
	StoreQuery    = newTimingMetric("store_query")
	PageBootstrap = newTimingMetric("page_bootstrap")
	PayloadLoad   = newTimingMetric("payload_load")
)

// All returns every registered metric.
func All() []*TimingMetric {
	return []*TimingMetric{RenderScene, RenderSVG, RenderPNG, FetchFacets, StoreQuery, PageBootstrap, PayloadLoad}
}

// ResetAll clears every metric.
func ResetAll() {
	for _, m := range All() {
		m.Reset()
	}
}

// Snapshot returns stats for metrics that have at least one sample.
func Snapshot() []TimingStats {
	all := All()
	out := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			out = append(out, m.Stats())
		}
	}
	return out
}
