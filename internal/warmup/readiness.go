package warmup

import (
	"sync/atomic"
	"time"
)

// Readiness reasons reported by Status.
const (
	ReasonWarming  = "embedding cache warmup in progress"
	ReasonTimedOut = "grace period elapsed (warmup may still be running)"
)

// ReadinessState tracks whether the startup warmup has finished. The
// service also counts as ready once the grace period has elapsed, so a slow
// embedding provider never keeps it out of rotation.
// Safe for concurrent use; startTime and grace are immutable.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	grace     time.Duration
	now       func() time.Time
}

// ReadinessStatus contains the current readiness state for API responses.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	GraceSeconds   int    `json:"grace_seconds,omitempty"`
}

// NewReadinessState starts tracking with the given grace period. A grace
// of zero means ready immediately.
func NewReadinessState(grace time.Duration) *ReadinessState {
	return newReadinessState(grace, time.Now)
}

func newReadinessState(grace time.Duration, now func() time.Time) *ReadinessState {
	return &ReadinessState{startTime: now(), grace: grace, now: now}
}

// IsReady reports whether MarkReady was called or the grace period elapsed.
func (s *ReadinessState) IsReady() bool {
	return s.ready.Load() || s.now().Sub(s.startTime) >= s.grace
}

// MarkReady records that warmup finished.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// WarmupCompleted reports whether MarkReady was called, ignoring the grace period.
func (s *ReadinessState) WarmupCompleted() bool {
	return s.ready.Load()
}

// Status returns the current readiness status for API responses.
func (s *ReadinessState) Status() ReadinessStatus {
	status := ReadinessStatus{
		Ready:          s.IsReady(),
		ElapsedSeconds: int(s.now().Sub(s.startTime).Seconds()),
		GraceSeconds:   int(s.grace.Seconds()),
	}
	switch {
	case !status.Ready:
		status.Reason = ReasonWarming
	case !s.ready.Load():
		status.Reason = ReasonTimedOut
	}
	return status
}
