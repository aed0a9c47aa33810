package perf

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Monitor records named marks and measures the time between them
type Monitor struct {
	mu     sync.Mutex
	marks  map[string]time.Time
	clock  clock.Clock
	logger *slog.Logger
}

// NewMonitor creates an empty monitor
func NewMonitor(opts ...Option) *Monitor {
	o := newOptions(opts)
	return &Monitor{
		marks:  make(map[string]time.Time),
		clock:  o.clock,
		logger: o.logger,
	}
}

// Mark records the current time under name, replacing an earlier mark
func (m *Monitor) Mark(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[name] = m.clock.Now()
}

// Measure returns the time from start to end, or to now when end is empty.
// An unknown mark logs a warning and measures 0.
func (m *Monitor) Measure(start, end string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.marks[start]
	if !ok {
		m.logger.Warn("performance mark not found", "mark", start)
		return 0
	}
	to := m.clock.Now()
	if end != "" {
		if to, ok = m.marks[end]; !ok {
			m.logger.Warn("performance mark not found", "mark", end)
			return 0
		}
	}
	return to.Sub(from)
}

// ClearMarks removes every mark
func (m *Monitor) ClearMarks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.marks)
}

// Marks returns a copy of the recorded marks
func (m *Monitor) Marks() map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.marks)
}
