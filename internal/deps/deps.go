package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelforge/internal/config"
)

// Requirement names an external tool a worker shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of probing one requirement. Path holds the resolved
// executable when the probe succeeds; Detail explains a failure.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries resolves each requirement's command on PATH, or directly
// when the command is a path, and reports one Status per requirement in the
// order given.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = probe(req)
	}
	return results
}

func probe(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// ToolRequirements lists the binaries a worker needs: the encoder that
// prepares scenes and renders segments, then the two assembler tools.
func ToolRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{Name: "Encoder", Command: cfg.Encoder.Binary, Description: "Prepares scenes and renders segments"},
		{Name: "Concatenator", Command: cfg.Assembler.ConcatBinary, Description: "Joins segment movies"},
		{Name: "Muxer", Command: cfg.Assembler.MuxBinary, Description: "Writes deliverables with optional audio"},
	}
}
