package metrics

import (
	"testing"
	"time"
)

func TestRecordCountsOutcomes(t *testing.T) {
	m := New()
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	m.Start(start)

	m.Record("valid", 100*time.Millisecond)
	m.Record("valid", 300*time.Millisecond)
	m.Record("invalid", 200*time.Millisecond)
	m.Record("transient_unavailable", 0)
	m.Record("connection_error", 400*time.Millisecond)
	m.Finish(start.Add(2 * time.Second))

	stats := m.Stats()
	want := map[string]int64{
		"total_checks":            5,
		"valid":                   2,
		"invalid":                 1,
		"transient_unavailable":   1,
		"connection_errors":       1,
		"last_request_time_ms":    400,
		"average_request_time_ms": 200,
		"total_request_time_ms":   1000,
		"elapsed_ms":              2000,
	}
	for key, v := range want {
		if stats[key] != v {
			t.Errorf("%s = %v, want %d", key, stats[key], v)
		}
	}
	if stats["is_healthy"] != true {
		t.Errorf("expected healthy metrics")
	}
}

func TestSetErrorMarksUnhealthy(t *testing.T) {
	m := New()
	m.SetError("identity check failed")

	stats := m.Stats()
	if stats["is_healthy"] != false {
		t.Errorf("expected unhealthy after SetError")
	}
	if stats["last_error"] != "identity check failed" {
		t.Errorf("last_error = %v", stats["last_error"])
	}
	if _, ok := stats["started_at"]; ok {
		t.Errorf("started_at should be absent before Start")
	}
}
