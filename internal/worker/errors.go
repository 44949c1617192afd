package worker

import (
	"fmt"

	"reelforge/internal/services"
)

// MissingUpstreamArtifactError reports that a unit's input, produced by an
// earlier unit, is not on disk.
type MissingUpstreamArtifactError struct {
	Unit     string
	Artifact string
	Path     string
}

func (e *MissingUpstreamArtifactError) Error() string {
	return fmt.Sprintf("%s: %s missing at %s", e.Unit, e.Artifact, e.Path)
}

// Unwrap marks the error as not found so the queue may retry the unit.
func (e *MissingUpstreamArtifactError) Unwrap() error {
	return services.ErrNotFound
}
