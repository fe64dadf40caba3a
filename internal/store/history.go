package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when the history holds no runs.
	ErrNotFound = errors.New("no pipeline runs recorded")
)

// Run is anything the history can order by start time.
type Run interface {
	StartedAt() time.Time
}

// RunHistory is a concurrency-safe in-memory log of pipeline runs.
type RunHistory[T Run] struct {
	mu   sync.RWMutex
	runs []T

	// retention configuration
	maxHistory int           // max number of runs kept
	maxAge     time.Duration // optional max age for runs

	now func() time.Time
}

// NewRunHistory creates a RunHistory with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewRunHistory[T Run](maxHistory int, maxAge time.Duration) *RunHistory[T] {
	return &RunHistory[T]{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a run and enforces retention.
func (h *RunHistory[T]) Save(run T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append(h.runs, run)

	// Enforce retention by count.
	if h.maxHistory > 0 && len(h.runs) > h.maxHistory {
		over := len(h.runs) - h.maxHistory
		h.runs = append([]T(nil), h.runs[over:]...)
	}

	// Enforce retention by age. The newest run always survives.
	if h.maxAge > 0 {
		cutoff := h.now().Add(-h.maxAge)
		i := 0
		for ; i < len(h.runs)-1; i++ {
			if !h.runs[i].StartedAt().Before(cutoff) {
				break
			}
		}
		if i > 0 {
			h.runs = append([]T(nil), h.runs[i:]...)
		}
	}
}

// Latest returns the most recently saved run.
func (h *RunHistory[T]) Latest() (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.runs) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return h.runs[len(h.runs)-1], nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (h *RunHistory[T]) List(limit int) []T {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(h.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.runs[i])
	}
	return out
}

// Len returns the number of runs held.
func (h *RunHistory[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}
