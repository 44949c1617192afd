package jobgraph

import (
	"fmt"
	"strings"
)

const (
	completeAtomPrefix = "complete-work-self-"
	conjunction        = " and "
)

// Trigger is a conjunction of unit completions.
type Trigger struct {
	Completed []string
}

// OnComplete builds a trigger that fires once every named unit completed.
func OnComplete(names ...string) Trigger {
	return Trigger{Completed: append([]string(nil), names...)}
}

// String renders the trigger expression, for example
// "complete-work-self-Segment:1-10 and complete-work-self-Segment:11-20".
func (t Trigger) String() string {
	atoms := make([]string, len(t.Completed))
	for i, name := range t.Completed {
		atoms[i] = completeAtomPrefix + name
	}
	return strings.Join(atoms, conjunction)
}

// ParseTrigger reads a trigger expression produced by String.
func ParseTrigger(expr string) (Trigger, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Trigger{}, fmt.Errorf("empty trigger expression")
	}
	var names []string
	for _, atom := range strings.Split(trimmed, conjunction) {
		atom = strings.TrimSpace(atom)
		name, ok := strings.CutPrefix(atom, completeAtomPrefix)
		if !ok || name == "" {
			return Trigger{}, fmt.Errorf("unsupported trigger atom %q", atom)
		}
		names = append(names, name)
	}
	return Trigger{Completed: names}, nil
}

// Satisfied reports whether every unit of the trigger completed.
func (t Trigger) Satisfied(completed func(name string) bool) bool {
	if len(t.Completed) == 0 {
		return false
	}
	for _, name := range t.Completed {
		if !completed(name) {
			return false
		}
	}
	return true
}

// Action is a built-in operation the queue runs when a trigger fires.
type Action string

// ActionUnblock moves the callback's units from blocked to pending.
const ActionUnblock Action = "unblock"

// ParseAction validates a stored action.
func ParseAction(value string) (Action, error) {
	if Action(strings.TrimSpace(value)) == ActionUnblock {
		return ActionUnblock, nil
	}
	return "", fmt.Errorf("unknown callback action %q", value)
}

// Callback runs Action on Units once Trigger is satisfied. Each callback fires
// at most once.
type Callback struct {
	Trigger Trigger
	Action  Action
	Units   []string
}
