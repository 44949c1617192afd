package preflight

import (
	"context"

	"reelforge/internal/config"
	"reelforge/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check a worker must pass before it claims units, in
// the order the status command displays them.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)}
	// With no shared scratch directory each job uses a folder beside its
	// output, which is checked when the job runs.
	if cfg.Paths.TranscoderDir != "" {
		results = append(results, CheckDirectoryAccess("Transcoder directory", cfg.Paths.TranscoderDir))
	}
	results = append(results, fromStatus(deps.CheckInitScript(cfg.Encoder.InitScript)))
	for _, status := range CheckSystemDeps(cfg) {
		if !status.Optional {
			results = append(results, fromStatus(status))
		}
	}
	return append(results, CheckQueueDatabase(ctx, cfg))
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fromStatus(status deps.Status) Result {
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	detail := status.Command
	if status.Path != "" && status.Path != status.Command {
		detail = status.Command + " (" + status.Path + ")"
	}
	return Result{Name: status.Name, Passed: true, Detail: detail}
}
