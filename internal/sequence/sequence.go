package sequence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"reelforge/internal/framerange"
)

var framePattern = regexp.MustCompile(`^(.*?)(\d{2,})(\.\w+)$`)

// Descriptor identifies one numbered image sequence.
type Descriptor struct {
	Folder       string
	Prefix       string
	Padding      int
	Extension    string
	InitialFrame int
}

// FromExamplePath derives a descriptor from the path of any frame.
func FromExamplePath(path string) (Descriptor, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Descriptor{}, &InvalidSequenceError{Path: path}
	}
	if strings.HasPrefix(trimmed, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			trimmed = filepath.Join(home, strings.TrimPrefix(trimmed[1:], string(filepath.Separator)))
		}
	}
	folder, base := filepath.Split(trimmed)
	match := framePattern.FindStringSubmatch(base)
	if match == nil {
		return Descriptor{}, &InvalidSequenceError{Path: path}
	}
	frame, err := strconv.Atoi(match[2])
	if err != nil {
		return Descriptor{}, &InvalidSequenceError{Path: path}
	}
	return Descriptor{
		Folder:       filepath.Clean(folderOrDot(folder)),
		Prefix:       match[1],
		Padding:      len(match[2]),
		Extension:    match[3],
		InitialFrame: frame,
	}, nil
}

func folderOrDot(folder string) string {
	if folder == "" {
		return "."
	}
	return folder
}

// FrameName returns the file name of frame n without the folder. Numbers
// wider than the padding are written in full.
func (d Descriptor) FrameName(n int) string {
	return fmt.Sprintf("%s%0*d%s", d.Prefix, d.Padding, n, d.Extension)
}

// FrameFile returns the full path of frame n.
func (d Descriptor) FrameFile(n int) string {
	return filepath.Join(d.Folder, d.FrameName(n))
}

// InitialFile returns the path of the frame the descriptor was derived from.
func (d Descriptor) InitialFile() string {
	return d.FrameFile(d.InitialFrame)
}

// Template replaces the frame digits with '#' characters, for example
// "shot.#####.png".
func (d Descriptor) Template() string {
	return d.Prefix + strings.Repeat("#", d.Padding) + d.Extension
}

// Name is the prefix without trailing separators, suitable for labels.
func (d Descriptor) Name() string {
	name := strings.TrimRight(d.Prefix, "_. (")
	if name == "" {
		return strings.TrimPrefix(d.Extension, ".")
	}
	return name
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return filepath.Join(d.Folder, d.Template())
}

// ExistingFrames returns the members of r whose frame file exists on disk.
func (d Descriptor) ExistingFrames(r framerange.Set) framerange.Set {
	var present []int
	for _, frame := range r.Members() {
		info, err := os.Stat(d.FrameFile(frame))
		if err != nil || info.IsDir() {
			continue
		}
		present = append(present, frame)
	}
	return framerange.New(present...)
}

// MissingFrames returns the members of r with no frame file on disk.
func (d Descriptor) MissingFrames(r framerange.Set) framerange.Set {
	return r.Difference(d.ExistingFrames(r))
}

// Scan lists every frame of the sequence present in the folder.
func (d Descriptor) Scan() (framerange.Set, error) {
	entries, err := os.ReadDir(d.Folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return framerange.Set{}, nil
		}
		return framerange.Set{}, fmt.Errorf("read sequence folder: %w", err)
	}
	var frames []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if frame, ok := d.frameOf(entry.Name()); ok {
			frames = append(frames, frame)
		}
	}
	return framerange.New(frames...), nil
}

func (d Descriptor) frameOf(name string) (int, bool) {
	if !strings.HasPrefix(name, d.Prefix) || !strings.HasSuffix(name, d.Extension) {
		return 0, false
	}
	digits := name[len(d.Prefix) : len(name)-len(d.Extension)]
	if len(digits) < d.Padding {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	frame, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	// Reject names that only look similar, such as extra leading zeros.
	if d.FrameName(frame) != name {
		return 0, false
	}
	return frame, true
}

// Bounds returns the first and last frames present on disk.
func (d Descriptor) Bounds() (framerange.Run, error) {
	frames, err := d.Scan()
	if err != nil {
		return framerange.Run{}, err
	}
	bounds, ok := frames.Bounds()
	if !ok {
		return framerange.Run{}, &EmptySequenceError{Folder: d.Folder, Template: d.Template()}
	}
	return bounds, nil
}

// Size returns the total size in bytes of the existing frames in r.
func (d Descriptor) Size(r framerange.Set) (uint64, error) {
	var total uint64
	for _, frame := range r.Members() {
		info, err := os.Stat(d.FrameFile(frame))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat frame %d: %w", frame, err)
		}
		total += uint64(info.Size())
	}
	return total, nil
}

// HumanSize formats Size for display.
func (d Descriptor) HumanSize(r framerange.Set) (string, error) {
	size, err := d.Size(r)
	if err != nil {
		return "", err
	}
	return humanize.IBytes(size), nil
}

// DeleteFrames removes the frame files of r that exist and returns how many
// were removed.
func (d Descriptor) DeleteFrames(r framerange.Set) (int, error) {
	removed := 0
	for _, frame := range r.Members() {
		err := os.Remove(d.FrameFile(frame))
		if err == nil {
			removed++
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return removed, fmt.Errorf("remove frame %d: %w", frame, err)
	}
	return removed, nil
}
