package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// HistoryEntry is one past run. The token itself is never stored, only its
// fingerprint.
type HistoryEntry struct {
	Fingerprint string    `json:"fingerprint"`
	RunID       string    `json:"run_id"`
	CheckedAt   time.Time `json:"checked_at"`
	Status      string    `json:"status"`
	Identity    string    `json:"identity,omitempty"`
}

// History keeps past runs in a JSON file.
type History struct {
	filePath string
	ttl      time.Duration
	entries  []HistoryEntry
	now      func() time.Time
	mu       sync.RWMutex
}

// NewHistory creates a history store. A ttlDays <= 0 keeps entries forever.
func NewHistory(filePath string, ttlDays int) *History {
	return &History{
		filePath: filePath,
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Fingerprint returns a short stable hash of a token.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])[:16]
}

// Load reads the history file. A missing or empty file is an empty history.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read history file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	h.entries = h.entries[:0]
	for _, e := range entries {
		if h.fresh(e) {
			h.entries = append(h.entries, e)
		}
	}
	return nil
}

// Save writes the history file, creating its directory when needed.
func (h *History) Save() error {
	h.mu.RLock()
	entries := make([]HistoryEntry, 0, len(h.entries))
	for _, e := range h.entries {
		if h.fresh(e) {
			entries = append(entries, e)
		}
	}
	h.mu.RUnlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if dir := filepath.Dir(h.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	if err := os.WriteFile(h.filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// Record appends an entry. CheckedAt defaults to now.
func (h *History) Record(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.CheckedAt.IsZero() {
		e.CheckedAt = h.now()
	}
	h.entries = append(h.entries, e)
}

// Last returns the most recent entry for a fingerprint.
func (h *History) Last(fingerprint string) (HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var (
		last  HistoryEntry
		found bool
	)
	for _, e := range h.entries {
		if e.Fingerprint != fingerprint || !h.fresh(e) {
			continue
		}
		if !found || e.CheckedAt.After(last.CheckedAt) {
			last = e
			found = true
		}
	}
	return last, found
}

// Entries returns a copy of the fresh entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, 0, len(h.entries))
	for _, e := range h.entries {
		if h.fresh(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CheckedAt.Before(out[j].CheckedAt)
	})
	return out
}

func (h *History) fresh(e HistoryEntry) bool {
	if h.ttl <= 0 {
		return true
	}
	return e.CheckedAt.After(h.now().Add(-h.ttl))
}
