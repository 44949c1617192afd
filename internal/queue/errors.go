package queue

import (
	"errors"
	"fmt"

	"reelforge/internal/jobgraph"
)

var (
	// ErrJobNotFound reports an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnitNotFound reports an unknown unit name within a known job.
	ErrUnitNotFound = errors.New("work unit not found")
	// ErrJobExists reports a submission reusing an existing job id.
	ErrJobExists = errors.New("job already exists")
)

// TransitionError reports a status change the unit state machine forbids.
type TransitionError struct {
	JobID string
	Unit  string
	From  jobgraph.Status
	To    jobgraph.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s unit %q: cannot move from %s to %s", e.JobID, e.Unit, e.From, e.To)
}

// NotOwnedError reports a worker reporting on a unit another worker holds.
type NotOwnedError struct {
	JobID    string
	Unit     string
	WorkerID string
	Owner    string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("job %s unit %q is held by worker %q, not %q", e.JobID, e.Unit, e.Owner, e.WorkerID)
}
