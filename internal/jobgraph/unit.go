package jobgraph

import (
	"fmt"
	"strings"
)

// Kind identifies one of the three unit tiers.
type Kind string

const (
	KindInitialize Kind = "initialize"
	KindSegment    Kind = "segment"
	KindOutput     Kind = "output"
)

// ParseKind validates a stored kind value.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindInitialize:
		return KindInitialize, nil
	case KindSegment:
		return KindSegment, nil
	case KindOutput:
		return KindOutput, nil
	default:
		return "", fmt.Errorf("unknown unit kind %q", value)
	}
}

// Status is the lifecycle state of a work unit.
type Status string

const (
	StatusBlocked  Status = "blocked"
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// transitions lists every status change the queue may apply. The forward
// path is blocked, pending, running, then complete or failed. The remaining
// edges cover external blocking, stale claim reclaim, and operator retries.
var transitions = map[Status][]Status{
	StatusBlocked:  {StatusPending},
	StatusPending:  {StatusRunning, StatusBlocked},
	StatusRunning:  {StatusComplete, StatusFailed, StatusBlocked, StatusPending},
	StatusFailed:   {StatusPending, StatusBlocked},
	StatusComplete: nil,
}

// ParseStatus validates a stored status value.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("unknown unit status %q", value)
	}
	return status, nil
}

// CanTransition reports whether a unit may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further work will happen without operator action.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// WorkUnit is one schedulable step of a job.
type WorkUnit struct {
	Kind    Kind
	Name    string
	Status  Status
	Package map[string]string
	Result  map[string]string
}

// InitializeName is the name of the single Initialize unit of every job.
const InitializeName = "Initialize"

const (
	segmentPrefix = "Segment:"
	outputPrefix  = "Output:"
)

// SegmentName names the Segment unit covering frames.
func SegmentName(frames fmt.Stringer) string {
	return segmentPrefix + frames.String()
}

// OutputName names the Output unit producing the file with the given base name.
func OutputName(baseName string) string {
	return outputPrefix + baseName
}

// IsSegmentName reports whether name follows the Segment naming scheme.
func IsSegmentName(name string) bool {
	return strings.HasPrefix(name, segmentPrefix) && len(name) > len(segmentPrefix)
}
