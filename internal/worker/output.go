package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"reelforge/internal/encode"
	"reelforge/internal/jobgraph"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// runOutput assembles the deliverable from the results of its segments.
func (w *Worker) runOutput(ctx context.Context, logger *slog.Logger, job jobgraph.Job, unit *queue.Unit) (map[string]string, error) {
	pkg, err := jobgraph.DecodeOutputPackage(unit.Package)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, unit.Name, "decode package", "", err)
	}
	units, err := w.store.Units(ctx, unit.JobID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, unit.Name, "load segment results", "", err)
	}
	byName := make(map[string]queue.Unit, len(units))
	for _, u := range units {
		byName[u.Name] = u
	}

	var (
		segmentFiles []string
		changed      int
		startFrame   int
	)
	for i, name := range pkg.SegmentSubjobs {
		segment, ok := byName[name]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, unit.Name, "gather segments", fmt.Sprintf("segment %s is not part of the job", name), nil)
		}
		if i == 0 {
			segPkg, err := jobgraph.DecodeSegmentPackage(segment.Package)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, unit.Name, "decode segment package", name, err)
			}
			startFrame, _ = segPkg.FrameRange.Min()
		}
		if segment.Status != jobgraph.StatusComplete || len(segment.Result) == 0 {
			return nil, &MissingUpstreamArtifactError{Unit: unit.Name, Artifact: "result of " + name, Path: "queue"}
		}
		result, err := jobgraph.DecodeSegmentResult(segment.Result)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, unit.Name, "decode segment result", name, err)
		}
		if !fileExists(result.SegmentFile) {
			return nil, &MissingUpstreamArtifactError{Unit: unit.Name, Artifact: "segment file of " + name, Path: result.SegmentFile}
		}
		if result.Changed {
			changed++
		}
		segmentFiles = append(segmentFiles, result.SegmentFile)
	}

	if changed == 0 && fileExists(pkg.OutputFile) {
		logger.Info("no segment changed; keeping existing deliverable",
			logging.Args(append(logging.DecisionAttrs("smart_update", "skip", "deliverable up to date"),
				logging.String("output_file", pkg.OutputFile),
			)...)...)
		return jobgraph.OutputResult{OutputFile: pkg.OutputFile, Skipped: true}.Map(), nil
	}
	logger.Info("assembling output",
		logging.String("output_file", pkg.OutputFile),
		logging.Int("segments", len(segmentFiles)),
		logging.Int("changed_segments", changed),
	)

	concatFile, err := encode.ValidOutputPath(jobgraph.ConcatFile(job.TranscoderFolder, pkg.OutputFile), w.outputRetries)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(concatFile), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, unit.Name, "create segment folder", "", err)
	}
	concat := w.tools.ConcatSegments(concatFile, segmentFiles)
	if err := w.runTool(ctx, logger, "concat", concat); err != nil {
		return nil, err
	}
	if !fileExists(concatFile) {
		return nil, &encode.EncoderFailureError{Tool: "concat", Command: concat.String(), Output: "concatenated file " + concatFile + " was not written"}
	}

	outputFile, err := encode.ValidOutputPath(pkg.OutputFile, w.outputRetries)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, unit.Name, "create output folder", "", err)
	}
	mux := w.tools.Mux(encode.MuxRequest{
		OutputFile:    outputFile,
		Input:         concatFile,
		SelfContained: job.SelfContained,
		AudioFile:     job.AudioFile,
		AudioOffset:   encode.AudioOffset(startFrame, w.frameRate),
	})
	if err := w.runTool(ctx, logger, "mux", mux); err != nil {
		return nil, err
	}
	if !fileExists(outputFile) {
		return nil, &encode.EncoderFailureError{Tool: "mux", Command: mux.String(), Output: "deliverable " + outputFile + " was not written"}
	}
	if err := os.Remove(concatFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove concatenated file", "output_cleanup_failed",
			logging.String("path", concatFile),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale intermediate file left in the transcoder folder"),
		)
	}
	logger.Info("output written", logging.String("output_file", outputFile))
	return jobgraph.OutputResult{OutputFile: outputFile}.Map(), nil
}
