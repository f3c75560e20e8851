package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestTimingMetric_Record(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Fatalf("Count = %d, want 2", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 4 || s.AvgMs != 3 {
		t.Errorf("stats = %+v", s)
	}

	m.Reset()
	if m.Count() != 0 || m.Stats().MaxMs != 0 {
		t.Errorf("Reset left data: %+v", m.Stats())
	}
}

func TestTimingMetric_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	m.Record(time.Second)
	Timer(m)()
	if m.Count() != 0 {
		t.Errorf("recorded %d samples while disabled", m.Count())
	}
}

func TestTimingMetric_Concurrent(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("concurrent")
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Record(time.Duration(n) * time.Microsecond)
		}(i)
	}
	wg.Wait()

	s := m.Stats()
	if s.Count != 50 {
		t.Errorf("Count = %d, want 50", s.Count)
	}
	if s.MinMs != 0.001 || s.MaxMs != 0.05 {
		t.Errorf("min/max = %v/%v", s.MinMs, s.MaxMs)
	}
}

func TestSnapshot_OnlyUsedMetrics(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	Timer(RenderSVG)()
	snap := Snapshot()
	if len(snap) != 1 || snap[0].Name != "render_svg" {
		t.Errorf("Snapshot = %+v", snap)
	}
}

func TestTimer_NilMetric(t *testing.T) {
	Timer(nil)()
}
