package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"reelforge/internal/encode"
	"reelforge/internal/jobgraph"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/sequence"
	"reelforge/internal/services"
)

// runInitialize prepares the scene file shared by every Segment of the job.
func (w *Worker) runInitialize(ctx context.Context, logger *slog.Logger, job jobgraph.Job, unit *queue.Unit) (map[string]string, error) {
	if _, err := jobgraph.DecodeInitializePackage(unit.Package); err != nil {
		return nil, services.Wrap(services.ErrValidation, unit.Name, "decode package", "", err)
	}
	desc, err := sequence.FromExamplePath(job.Sequence)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, unit.Name, "resolve sequence", "", err)
	}
	existing := desc.ExistingFrames(job.FrameRange)
	if existing.IsEmpty() {
		return nil, services.Wrap(services.ErrValidation, unit.Name, "scan sequence", "",
			&sequence.EmptySequenceError{Folder: desc.Folder, Template: desc.Template()})
	}

	attrs := []logging.Attr{
		logging.String("sequence", desc.String()),
		logging.FrameRange(existing),
		logging.Int("frames", existing.Len()),
	}
	if size, err := desc.HumanSize(existing); err == nil {
		attrs = append(attrs, logging.String("size", size))
	}
	logger.Info("sequence scanned", logging.Args(attrs...)...)
	if missing := desc.MissingFrames(job.FrameRange); !missing.IsEmpty() {
		impact := "the encoder renders gaps as missing frames"
		if job.FillMissingFrames {
			impact = "gaps repeat the previous existing frame"
		}
		logging.WarnWithContext(logger, "sequence has missing frames", "sequence_gaps",
			logging.String("missing", missing.String()),
			logging.Int("missing_count", missing.Len()),
			logging.String(logging.FieldImpact, impact),
			logging.String(logging.FieldErrorHint, "render the missing frames or enable fill missing frames"),
		)
	}

	if err := os.MkdirAll(filepath.Dir(job.SceneFile), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, unit.Name, "create scene folder", "", err)
	}
	command := w.tools.Initialize(encode.InitRequest{
		Preset:            job.Preset,
		InitFile:          desc.InitialFile(),
		SceneFile:         job.SceneFile,
		FillMissingFrames: job.FillMissingFrames,
	})
	if err := w.runTool(ctx, logger, "encoder", command); err != nil {
		return nil, err
	}
	if !fileExists(job.SceneFile) {
		return nil, &encode.EncoderFailureError{
			Tool:    "encoder",
			Command: command.String(),
			Output:  "scene file " + job.SceneFile + " was not written",
		}
	}
	logger.Info("scene prepared", logging.String("scene_file", job.SceneFile))
	return map[string]string{}, nil
}
