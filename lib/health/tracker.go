// Package health tracks the operational status of each source across
// fetch attempts. Records live in memory only and reset every session.
package health

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SlowThreshold is the latency above which a successful fetch is
// reported as Slow rather than Healthy.
const SlowThreshold = 5 * time.Second

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusHealthy Status = "healthy"
	StatusSlow    Status = "slow"
	StatusBroken  Status = "broken"
)

// Record is the health snapshot for one source.
type Record struct {
	Status              Status
	LastSuccess         *time.Time
	LastLatency         *time.Duration
	LastError           string
	ConsecutiveFailures int
}

// Indicator returns the one-glyph status marker used by list views.
func (r Record) Indicator() string {
	switch r.Status {
	case StatusHealthy:
		return "●"
	case StatusSlow:
		return "◐"
	case StatusBroken:
		return "✗"
	default:
		return "○"
	}
}

// Description returns a human-readable status summary.
func (r Record) Description() string {
	switch r.Status {
	case StatusHealthy:
		if r.LastLatency != nil {
			return fmt.Sprintf("OK (%dms)", r.LastLatency.Milliseconds())
		}
		return "OK"
	case StatusSlow:
		if r.LastLatency != nil {
			return fmt.Sprintf("Slow (%dms)", r.LastLatency.Milliseconds())
		}
		return "Slow"
	case StatusBroken:
		if r.LastError != "" {
			return fmt.Sprintf("Error: %s", r.LastError)
		}
		return "Broken"
	default:
		return "Not checked"
	}
}

// Tracker is the source-keyed health store. It is written only from the
// refresh path, but API handlers read it concurrently, hence the lock.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]Record
	log     *zap.Logger
}

func NewTracker(lc fx.Lifecycle, log *zap.Logger) *Tracker {
	return New(log)
}

func New(log *zap.Logger) *Tracker {
	return &Tracker{
		records: make(map[string]Record),
		log:     log,
	}
}

// Get returns the record for a source, defaulting to Unknown for sources
// that have not been attempted this session.
func (t *Tracker) Get(url string) Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if r, ok := t.records[url]; ok {
		return r
	}
	return Record{Status: StatusUnknown}
}

// Success records a completed fetch, branching Healthy/Slow on latency
// and resetting the consecutive-failure counter.
func (t *Tracker) Success(url string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := StatusHealthy
	if latency > SlowThreshold {
		status = StatusSlow
		t.log.Sugar().Debugw("Source responding slowly", "url", url, "latency_msecs", latency.Milliseconds())
	}

	now := time.Now().UTC()
	t.records[url] = Record{
		Status:      status,
		LastSuccess: &now,
		LastLatency: &latency,
	}
}

// Failure records a failed attempt of any kind: transport, protocol
// status, body read, or parse. The prior last-success survives.
func (t *Tracker) Failure(url string, latency *time.Duration, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.records[url]
	rec := Record{
		Status:              StatusBroken,
		LastSuccess:         prev.LastSuccess,
		LastLatency:         latency,
		LastError:           message,
		ConsecutiveFailures: prev.ConsecutiveFailures + 1,
	}
	t.records[url] = rec

	t.log.Sugar().Warnw("Source broken", "url", url, "reason", message, "consecutive_failures", rec.ConsecutiveFailures)
}
