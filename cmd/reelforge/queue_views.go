package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"reelforge/internal/jobgraph"
	"reelforge/internal/queue"
)

// unitStatusOrder is the display order for status counts.
var unitStatusOrder = []jobgraph.Status{
	jobgraph.StatusBlocked,
	jobgraph.StatusPending,
	jobgraph.StatusRunning,
	jobgraph.StatusComplete,
	jobgraph.StatusFailed,
}

type jobJSON struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Sequence   string         `json:"sequence"`
	OutputFile string         `json:"outputFile"`
	FrameRange string         `json:"frameRange"`
	Counts     map[string]int `json:"counts"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
}

type unitJSON struct {
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	Status        string            `json:"status"`
	Package       map[string]string `json:"package"`
	Result        map[string]string `json:"result,omitempty"`
	WorkerID      string            `json:"workerId,omitempty"`
	Attempts      int               `json:"attempts"`
	Error         string            `json:"error,omitempty"`
	LastHeartbeat string            `json:"lastHeartbeat,omitempty"`
}

type callbackJSON struct {
	Trigger string   `json:"trigger"`
	Action  string   `json:"action"`
	Units   []string `json:"units"`
	FiredAt string   `json:"firedAt,omitempty"`
}

type jobDetailJSON struct {
	Job       jobJSON        `json:"job"`
	Units     []unitJSON     `json:"units"`
	Callbacks []callbackJSON `json:"callbacks"`
}

type planJSON struct {
	Job       jobgraph.Job   `json:"job"`
	Units     []unitJSON     `json:"units"`
	Callbacks []callbackJSON `json:"callbacks"`
}

func jobView(job queue.Job) jobJSON {
	counts := make(map[string]int, len(job.Counts))
	for status, n := range job.Counts {
		counts[string(status)] = n
	}
	return jobJSON{
		ID:         job.ID,
		Name:       job.Name,
		Status:     string(job.Status),
		Sequence:   job.Package.Sequence,
		OutputFile: job.Package.OutputFile,
		FrameRange: job.Package.FrameRange.String(),
		Counts:     counts,
		CreatedAt:  formatTimestamp(job.CreatedAt),
		UpdatedAt:  formatTimestamp(job.UpdatedAt),
	}
}

func unitView(unit queue.Unit) unitJSON {
	view := unitJSON{
		Name:     unit.Name,
		Kind:     string(unit.Kind),
		Status:   string(unit.Status),
		Package:  unit.Package,
		Result:   unit.Result,
		WorkerID: unit.WorkerID,
		Attempts: unit.Attempts,
		Error:    unit.ErrorMessage,
	}
	if unit.LastHeartbeat != nil {
		view.LastHeartbeat = formatTimestamp(*unit.LastHeartbeat)
	}
	return view
}

func callbackView(cb jobgraph.Callback, firedAt *time.Time) callbackJSON {
	view := callbackJSON{
		Trigger: cb.Trigger.String(),
		Action:  string(cb.Action),
		Units:   cb.Units,
	}
	if firedAt != nil {
		view.FiredAt = formatTimestamp(*firedAt)
	}
	return view
}

func planView(graph *jobgraph.Graph) planJSON {
	view := planJSON{Job: graph.Job}
	for _, unit := range graph.Units {
		view.Units = append(view.Units, unitView(queue.Unit{WorkUnit: unit}))
	}
	for _, cb := range graph.Callbacks {
		view.Callbacks = append(view.Callbacks, callbackView(cb, nil))
	}
	return view
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

// formatPackage renders a package map as sorted key=value pairs.
func formatPackage(values map[string]string) string {
	if len(values) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+values[key])
	}
	return strings.Join(parts, " ")
}

// formatUnitCounts renders non-zero counts in lifecycle order.
func formatUnitCounts(counts map[jobgraph.Status]int) string {
	parts := make([]string, 0, len(unitStatusOrder))
	for _, status := range unitStatusOrder {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// progress renders completed over total units.
func progress(counts map[jobgraph.Status]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	return fmt.Sprintf("%d/%d", counts[jobgraph.StatusComplete], total)
}
