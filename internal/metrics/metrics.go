package metrics

import (
	"sync"
	"time"
)

// Metrics collects counters for the checks of a run.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	TotalChecks      int64
	Valid            int64
	Invalid          int64
	Transient        int64
	ConnectionErrors int64

	// Timings
	LastRequestTime    time.Duration
	AverageRequestTime time.Duration
	TotalRequestTime   time.Duration

	// Status
	StartedAt  time.Time
	FinishedAt time.Time
	LastError  string
	IsHealthy  bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

// Record counts one check outcome. Outcome names match verify.Outcome.
func (m *Metrics) Record(outcome string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalChecks++
	switch outcome {
	case "valid":
		m.Valid++
	case "invalid":
		m.Invalid++
	case "transient_unavailable":
		m.Transient++
	case "connection_error":
		m.ConnectionErrors++
	}

	m.LastRequestTime = duration
	m.TotalRequestTime += duration
	m.AverageRequestTime = m.TotalRequestTime / time.Duration(m.TotalChecks)
}

func (m *Metrics) Start(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartedAt = at
	m.IsHealthy = true
}

func (m *Metrics) Finish(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinishedAt = at
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.IsHealthy = false
}

func (m *Metrics) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]any{
		"total_checks":            m.TotalChecks,
		"valid":                   m.Valid,
		"invalid":                 m.Invalid,
		"transient_unavailable":   m.Transient,
		"connection_errors":       m.ConnectionErrors,
		"last_request_time_ms":    m.LastRequestTime.Milliseconds(),
		"average_request_time_ms": m.AverageRequestTime.Milliseconds(),
		"total_request_time_ms":   m.TotalRequestTime.Milliseconds(),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
	if !m.StartedAt.IsZero() {
		stats["started_at"] = m.StartedAt.Format(time.RFC3339)
	}
	if !m.FinishedAt.IsZero() && !m.StartedAt.IsZero() {
		stats["elapsed_ms"] = m.FinishedAt.Sub(m.StartedAt).Milliseconds()
	}
	return stats
}
