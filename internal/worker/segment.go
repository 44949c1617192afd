package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"reelforge/internal/encode"
	"reelforge/internal/fingerprint"
	"reelforge/internal/jobgraph"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/sequence"
	"reelforge/internal/services"
)

// runSegment encodes one frame span when its frames changed since the last
// successful encode, or when its segment file is gone.
func (w *Worker) runSegment(ctx context.Context, logger *slog.Logger, job jobgraph.Job, unit *queue.Unit) (map[string]string, error) {
	pkg, err := jobgraph.DecodeSegmentPackage(unit.Package)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, unit.Name, "decode package", "", err)
	}
	if !fileExists(job.SceneFile) {
		return nil, &MissingUpstreamArtifactError{Unit: unit.Name, Artifact: "scene file", Path: job.SceneFile}
	}
	desc, err := sequence.FromExamplePath(job.Sequence)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, unit.Name, "resolve sequence", "", err)
	}

	store, err := fingerprint.Open(ctx, fingerprint.DBPath(desc, job.Sequence), w.policy, fingerprint.WithLockTimeout(w.lockTimeout))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, unit.Name, "open fingerprint store", "", err)
	}
	defer store.Close()

	eval, err := store.Evaluate(ctx, desc, pkg.FrameRange)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, unit.Name, "evaluate fingerprints", "", err)
	}
	changed := eval.Reencode()
	previousOutput, err := store.SegmentOutput(ctx, pkg.SegmentFile)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, unit.Name, "read segment output", "", err)
	}
	segmentExists := fileExists(previousOutput)
	if job.SmartUpdate && !changed && segmentExists {
		logger.Info("segment unchanged; skipping encode",
			logging.Args(append(logging.DecisionAttrs("smart_update", "skip", "no frame changed since last encode"),
				logging.String("segment_file", previousOutput))...)...)
		return jobgraph.SegmentResult{Changed: false, SegmentFile: previousOutput}.Map(), nil
	}
	reason := "smart update disabled"
	switch {
	case !job.SmartUpdate:
	case changed:
		reason = "frames changed"
	default:
		reason = "segment file missing"
	}
	diff := eval.Diff
	logger.Info("encoding segment",
		logging.Args(append(logging.DecisionAttrs("smart_update", "encode", reason),
			logging.FrameRange(pkg.FrameRange),
			logging.Int("added", len(diff.Added)),
			logging.Int("removed", len(diff.Removed)),
			logging.Int("modified", len(diff.Modified)),
		)...)...)

	outputPath, err := encode.ValidOutputPath(pkg.SegmentFile, w.outputRetries)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, unit.Name, "create segment folder", "", err)
	}
	start, _ := pkg.FrameRange.Min()
	end, _ := pkg.FrameRange.Max()
	command := w.tools.Segment(encode.SegmentRequest{
		SceneFile:  job.SceneFile,
		Start:      start,
		End:        end,
		OutputFile: outputPath,
	})
	if err := w.runTool(ctx, logger, "encoder", command); err != nil {
		return nil, err
	}
	if !fileExists(outputPath) {
		return nil, &encode.EncoderFailureError{
			Tool:    "encoder",
			Command: command.String(),
			Output:  "segment file " + outputPath + " was not written",
		}
	}

	if err := store.CommitSegment(ctx, eval, pkg.SegmentFile, outputPath); err != nil {
		return nil, services.Wrap(services.ErrTransient, unit.Name, "save fingerprints", "", err)
	}
	return jobgraph.SegmentResult{Changed: true, SegmentFile: outputPath}.Map(), nil
}
