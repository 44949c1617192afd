package queue

import (
	"time"

	"reelforge/internal/jobgraph"
)

// JobStatus summarizes the unit statuses of one job.
type JobStatus string

const (
	JobStatusBlocked  JobStatus = "blocked"
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// deriveJobStatus collapses per-unit counts: any failure fails the job, all
// complete completes it, otherwise the most advanced active state wins.
func deriveJobStatus(counts map[jobgraph.Status]int) JobStatus {
	total := 0
	for _, n := range counts {
		total += n
	}
	switch {
	case total == 0:
		return JobStatusPending
	case counts[jobgraph.StatusFailed] > 0:
		return JobStatusFailed
	case counts[jobgraph.StatusComplete] == total:
		return JobStatusComplete
	case counts[jobgraph.StatusRunning] > 0:
		return JobStatusRunning
	case counts[jobgraph.StatusPending] > 0:
		return JobStatusPending
	default:
		return JobStatusBlocked
	}
}

// Job is a stored job with its derived status.
type Job struct {
	ID        string
	Name      string
	Package   jobgraph.Job
	Status    JobStatus
	Counts    map[jobgraph.Status]int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unit is a stored work unit with its claim bookkeeping.
type Unit struct {
	jobgraph.WorkUnit
	JobID         string
	Position      int
	WorkerID      string
	Attempts      int
	ErrorMessage  string
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CallbackRecord is a stored callback and whether it already fired.
type CallbackRecord struct {
	ID       int64
	JobID    string
	Callback jobgraph.Callback
	FiredAt  *time.Time
}

// Event types recorded in the job history.
const (
	EventSubmitted = "submitted"
	EventClaimed   = "claimed"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventRequeued  = "requeued"
	EventBlocked   = "blocked"
	EventUnblocked = "unblocked"
	EventRetried   = "retried"
	EventReclaimed = "reclaimed"
)

// Event is one entry of a job's history.
type Event struct {
	ID        int64
	JobID     string
	Unit      string
	Type      string
	WorkerID  string
	Message   string
	CreatedAt time.Time
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
