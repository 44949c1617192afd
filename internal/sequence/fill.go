package sequence

import (
	"fmt"
	"math"

	"reelforge/internal/fileutil"
	"reelforge/internal/framerange"
)

// FrameSource maps a frame slot to the file that should be shown there.
type FrameSource struct {
	Frame int
	Path  string
	Held  bool
}

// FilledFrames resolves every member of r to a file on disk. Missing frames
// hold the most recent existing frame; a gap at the start holds the first
// existing frame that follows it. It fails with EmptySequenceError when no
// frame of r exists.
func (d Descriptor) FilledFrames(r framerange.Set) ([]FrameSource, error) {
	existing := d.ExistingFrames(r)
	first, ok := existing.Min()
	if !ok {
		return nil, &EmptySequenceError{Folder: d.Folder, Template: d.Template()}
	}
	members := r.Members()
	out := make([]FrameSource, 0, len(members))
	last := first
	for _, frame := range members {
		if existing.Contains(frame) {
			last = frame
			out = append(out, FrameSource{Frame: frame, Path: d.FrameFile(frame)})
			continue
		}
		out = append(out, FrameSource{Frame: frame, Path: d.FrameFile(last), Held: true})
	}
	return out, nil
}

// FillGaps writes a copy of the held frame into every missing frame slot of
// r and returns the frames it wrote. Each copy is verified against its
// source before the next one starts.
func (d Descriptor) FillGaps(r framerange.Set) (framerange.Set, error) {
	sources, err := d.FilledFrames(r)
	if err != nil {
		return framerange.Set{}, err
	}
	var written []int
	for _, src := range sources {
		if !src.Held {
			continue
		}
		if err := fileutil.CopyFileVerified(src.Path, d.FrameFile(src.Frame)); err != nil {
			return framerange.New(written...), fmt.Errorf("fill frame %d: %w", src.Frame, err)
		}
		written = append(written, src.Frame)
	}
	return framerange.New(written...), nil
}

// Timecode renders a frame count as HH;MM;SS;FF at the given frame rate.
func Timecode(frames int, frameRate float64) string {
	if frameRate <= 0 || frames < 0 {
		return "00;00;00;00"
	}
	totalSeconds := int(math.Floor(float64(frames) / frameRate))
	remainder := frames - int(math.Floor(float64(totalSeconds)*frameRate))
	hours := totalSeconds / 3600
	minutes := (totalSeconds / 60) % 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d;%02d;%02d;%02d", hours, minutes, seconds, remainder)
}

// Duration returns the timecode spanned by the sequence's existing frames,
// counting both the first and the last frame.
func (d Descriptor) Duration(frameRate float64) (string, error) {
	bounds, err := d.Bounds()
	if err != nil {
		return "", err
	}
	return Timecode(bounds.Len(), frameRate), nil
}
