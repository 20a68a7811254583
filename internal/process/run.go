// internal/process/run.go
package process

import "time"

// Status represents the lifecycle state of a batch run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusPartial means every candidate was attempted and some failed.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run captures the identity and final state of one batch run.
type Run struct {
	ID         string
	Kind       string
	Source     string
	Status     Status
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewRun(kind, id, source string) *Run {
	return &Run{
		ID:     id,
		Kind:   kind,
		Source: source,
		Status: StatusPending,
	}
}

func MarkRunning(r *Run) {
	r.Status = StatusRunning
	r.StartedAt = time.Now()
}

func MarkFailed(r *Run, err error) {
	r.Status = StatusFailed
	if err != nil {
		r.Detail = err.Error()
	}
	r.FinishedAt = time.Now()
}

// Settle decides the final status from the per-file tallies: no candidates
// or no successes is a failure, any failure alongside successes is partial.
func Settle(r *Run, found, succeeded, failed int) {
	switch {
	case found == 0:
		r.Status = StatusFailed
		if r.Detail == "" {
			r.Detail = "no files found in " + r.Source
		}
	case failed == 0:
		r.Status = StatusSucceeded
	case succeeded == 0:
		r.Status = StatusFailed
		if r.Detail == "" {
			r.Detail = "all files failed"
		}
	default:
		r.Status = StatusPartial
	}
	r.FinishedAt = time.Now()
}

// Success reports whether the run finished with no failures at all.
func (r *Run) Success() bool { return r.Status == StatusSucceeded }

// Duration returns the elapsed run time, or time since start while running.
func (r *Run) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
