package healthcheck

import (
	"sync"
	"time"
)

// SourceStatus describes the latest cycle outcome for one source.
type SourceStatus struct {
	LastCycleTime   time.Time  `json:"last_cycle_time"`
	LastSuccessTime *time.Time `json:"last_success_time,omitempty"`
	CycleDurationMS int64      `json:"cycle_duration_ms"`
	LastError       string     `json:"last_error,omitempty"`
}

// Snapshot describes the latest cycle timing details.
type Snapshot struct {
	LastCycleTime   *time.Time              `json:"last_cycle_time"`
	CycleDurationMS int64                   `json:"cycle_duration_ms"`
	SourcesPolled   int                     `json:"sources_polled"`
	Sources         map[string]SourceStatus `json:"sources,omitempty"`
}

// Tracker records cycle timing for health endpoints.
type Tracker struct {
	mu            sync.RWMutex
	lastCycle     time.Time
	cycleDuration time.Duration
	sources       map[string]SourceStatus
	ready         bool
}

// NewTracker constructs a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{sources: make(map[string]SourceStatus)}
}

// RecordCycle updates cycle timing and readiness. A nil err marks a successful cycle.
func (t *Tracker) RecordCycle(source string, duration time.Duration, err error) {
	if t == nil {
		return
	}
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.sources[source]
	status.LastCycleTime = now
	status.CycleDurationMS = int64(duration / time.Millisecond)
	status.LastError = ""
	if err != nil {
		status.LastError = err.Error()
	} else {
		success := now
		status.LastSuccessTime = &success
	}
	t.sources[source] = status

	t.lastCycle = now
	t.cycleDuration = duration
	t.ready = true
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastCycle.IsZero() {
		value := t.lastCycle
		last = &value
	}
	sources := make(map[string]SourceStatus, len(t.sources))
	for name, status := range t.sources {
		sources[name] = status
	}
	return Snapshot{
		LastCycleTime:   last,
		CycleDurationMS: int64(t.cycleDuration / time.Millisecond),
		SourcesPolled:   len(t.sources),
		Sources:         sources,
	}
}

// Ready reports whether at least one cycle has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last cycle completed within 2x the poll interval.
func (t *Tracker) Healthy(now time.Time, pollInterval time.Duration) bool {
	if t == nil {
		return false
	}
	if pollInterval <= 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastCycle.IsZero() {
		return false
	}
	return now.Sub(t.lastCycle) <= 2*pollInterval
}
