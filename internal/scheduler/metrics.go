package scheduler

import (
	"sync"
	"time"
)

// Metrics tracks scheduler activity for the status endpoint.
type Metrics struct {
	mu          sync.RWMutex
	ticks       int64
	deliveries  int64
	greetings   int64
	failures    int64
	saveErrors  int64
	lastTick    time.Time
	lastTickDur time.Duration
}

// MetricsSummary is a point-in-time copy of Metrics.
type MetricsSummary struct {
	Ticks        int64     `json:"ticks"`
	Deliveries   int64     `json:"deliveries"`
	Greetings    int64     `json:"greetings"`
	Failures     int64     `json:"failures"`
	SaveErrors   int64     `json:"save_errors"`
	LastTick     time.Time `json:"last_tick"`
	LastDuration string    `json:"last_tick_duration"`
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordTick(at time.Time, took time.Duration, r TickReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ticks++
	m.deliveries += int64(r.Fired)
	m.greetings += int64(r.Greeted)
	m.failures += int64(r.Failed)
	if r.SaveErr != nil {
		m.saveErrors++
	}
	m.lastTick = at
	m.lastTickDur = took
}

// Summary returns the current counters.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSummary{
		Ticks:        m.ticks,
		Deliveries:   m.deliveries,
		Greetings:    m.greetings,
		Failures:     m.failures,
		SaveErrors:   m.saveErrors,
		LastTick:     m.lastTick,
		LastDuration: m.lastTickDur.String(),
	}
}

// Healthy reports whether a tick completed within maxAge of now.
func (m *Metrics) Healthy(now time.Time, maxAge time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return !m.lastTick.IsZero() && now.Sub(m.lastTick) <= maxAge
}
