package jobgraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"reelforge/internal/framerange"
)

// Job holds the values shared by every unit of a job.
type Job struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Sequence          string         `json:"sequence"`
	OutputFile        string         `json:"outputFile"`
	Preset            string         `json:"preset"`
	AudioFile         string         `json:"audioFile,omitempty"`
	SelfContained     bool           `json:"selfContained"`
	SmartUpdate       bool           `json:"smartUpdate"`
	FillMissingFrames bool           `json:"fillMissingFrames"`
	FrameRange        framerange.Set `json:"frameRange"`
	TranscoderFolder  string         `json:"transcoderFolder"`
	SceneFile         string         `json:"sceneFile"`
}

// EncodeJob serializes the job for storage.
func EncodeJob(job Job) ([]byte, error) {
	return json.Marshal(job)
}

// DecodeJob reads a stored job, rejecting unknown fields.
func DecodeJob(data []byte) (Job, error) {
	var job Job
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&job); err != nil {
		return Job{}, fmt.Errorf("decode job package: %w", err)
	}
	var err error
	if job.ID == "" {
		err = multierr.Append(err, errors.New("job package: id missing"))
	}
	if job.Sequence == "" {
		err = multierr.Append(err, errors.New("job package: sequence missing"))
	}
	if job.OutputFile == "" {
		err = multierr.Append(err, errors.New("job package: outputFile missing"))
	}
	if job.SceneFile == "" {
		err = multierr.Append(err, errors.New("job package: sceneFile missing"))
	}
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// Graph is the ordered unit list and callbacks of one job.
type Graph struct {
	Job       Job
	Units     []WorkUnit
	Callbacks []Callback
}

// Unit returns the unit with the given name.
func (g *Graph) Unit(name string) (*WorkUnit, bool) {
	for i := range g.Units {
		if g.Units[i].Name == name {
			return &g.Units[i], true
		}
	}
	return nil, false
}

// UnitsOf returns the units of one kind in graph order.
func (g *Graph) UnitsOf(kind Kind) []WorkUnit {
	var out []WorkUnit
	for _, u := range g.Units {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}

// Validate checks the structural rules every built graph satisfies: exactly
// one Initialize unit, unique names, valid packages, every Output listing
// only existing Segments, every Segment belonging to exactly one Output, and
// callbacks referring only to existing units.
func (g *Graph) Validate() error {
	var err error
	kinds := make(map[string]Kind, len(g.Units))
	initCount := 0
	for _, u := range g.Units {
		if _, dup := kinds[u.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("duplicate unit name %q", u.Name))
		}
		kinds[u.Name] = u.Kind
		if u.Kind == KindInitialize {
			initCount++
		}
	}
	if initCount != 1 {
		err = multierr.Append(err, fmt.Errorf("expected exactly one initialize unit, found %d", initCount))
	}

	owners := make(map[string]int)
	for _, u := range g.Units {
		switch u.Kind {
		case KindInitialize:
			if _, perr := DecodeInitializePackage(u.Package); perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s: %w", u.Name, perr))
			}
		case KindSegment:
			if _, perr := DecodeSegmentPackage(u.Package); perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s: %w", u.Name, perr))
			}
		case KindOutput:
			pkg, perr := DecodeOutputPackage(u.Package)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s: %w", u.Name, perr))
				continue
			}
			for _, name := range pkg.SegmentSubjobs {
				if kinds[name] != KindSegment {
					err = multierr.Append(err, fmt.Errorf("%s depends on unknown segment %q", u.Name, name))
				}
				owners[name]++
			}
		default:
			err = multierr.Append(err, fmt.Errorf("unit %q has unknown kind %q", u.Name, u.Kind))
		}
	}
	for _, u := range g.Units {
		if u.Kind == KindSegment && owners[u.Name] != 1 {
			err = multierr.Append(err, fmt.Errorf("segment %q belongs to %d outputs", u.Name, owners[u.Name]))
		}
	}

	for i, cb := range g.Callbacks {
		if cb.Action != ActionUnblock {
			err = multierr.Append(err, fmt.Errorf("callback %d: unknown action %q", i, cb.Action))
		}
		for _, name := range append(append([]string(nil), cb.Trigger.Completed...), cb.Units...) {
			if _, ok := kinds[name]; !ok {
				err = multierr.Append(err, fmt.Errorf("callback %d refers to unknown unit %q", i, name))
			}
		}
	}
	return err
}
