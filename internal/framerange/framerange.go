package framerange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxFrame is the largest frame number a Set holds. Parse rejects larger
// values and Dilate stops growing at it.
const MaxFrame = 1<<31 - 1

// Run is an inclusive span of consecutive frames.
type Run struct {
	Start int
	End   int
}

// Len returns the number of frames covered by the run.
func (r Run) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// String renders the run as "a-b", or "a" when it covers a single frame.
func (r Run) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// Set is a deduplicated set of non-negative frame numbers.
type Set struct {
	runs []Run
}

// ParseError reports a malformed token inside a range string.
type ParseError struct {
	Input  string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid frame range token %q in %q: %s", e.Token, e.Input, e.Reason)
}

// New builds a set from individual frame numbers. Negative values and values
// above MaxFrame are ignored.
func New(frames ...int) Set {
	runs := make([]Run, 0, len(frames))
	for _, f := range frames {
		if f < 0 || f > MaxFrame {
			continue
		}
		runs = append(runs, Run{Start: f, End: f})
	}
	return Set{runs: normalize(runs)}
}

// Span returns the set covering start through end inclusive.
func Span(start, end int) Set {
	return FromRuns(Run{Start: start, End: end})
}

// FromRuns builds a set from arbitrary runs. Runs that are empty or lie
// entirely outside 0..MaxFrame are dropped; runs crossing either bound are
// clipped.
func FromRuns(runs ...Run) Set {
	cp := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.End < r.Start || r.End < 0 || r.Start > MaxFrame {
			continue
		}
		r.Start = max(r.Start, 0)
		r.End = min(r.End, MaxFrame)
		cp = append(cp, r)
	}
	return Set{runs: normalize(cp)}
}

// Parse reads a comma separated list of "N" and "a-b" tokens. Whitespace
// around tokens is ignored and an empty string yields the empty set.
func Parse(s string) (Set, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Set{}, nil
	}
	parts := strings.Split(trimmed, ",")
	runs := make([]Run, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(part)
		run, err := parseToken(token)
		if err != nil {
			return Set{}, &ParseError{Input: s, Token: token, Reason: err.Error()}
		}
		runs = append(runs, run)
	}
	return Set{runs: normalize(runs)}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// literals in tests and tables.
func MustParse(s string) Set {
	set, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return set
}

func parseToken(token string) (Run, error) {
	if token == "" {
		return Run{}, fmt.Errorf("empty token")
	}
	startText, endText, isRange := strings.Cut(token, "-")
	start, err := parseFrame(startText)
	if err != nil {
		return Run{}, err
	}
	if !isRange {
		return Run{Start: start, End: start}, nil
	}
	end, err := parseFrame(endText)
	if err != nil {
		return Run{}, err
	}
	if end < start {
		return Run{}, fmt.Errorf("range end %d precedes start %d", end, start)
	}
	return Run{Start: start, End: end}, nil
}

func parseFrame(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("missing frame number")
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not a non-negative integer", text)
		}
	}
	value, err := strconv.Atoi(text)
	if err != nil || value > MaxFrame {
		return 0, fmt.Errorf("frame number %s exceeds %d", text, MaxFrame)
	}
	return value, nil
}

// String formats the set as ascending maximal runs joined by commas.
func (s Set) String() string {
	if len(s.runs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range s.runs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (s Set) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Set) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Runs returns a copy of the maximal runs in ascending order.
func (s Set) Runs() []Run {
	out := make([]Run, len(s.runs))
	copy(out, s.runs)
	return out
}

// Len returns the number of frames in the set.
func (s Set) Len() int {
	total := 0
	for _, r := range s.runs {
		total += r.Len()
	}
	return total
}

// IsEmpty reports whether the set has no members.
func (s Set) IsEmpty() bool {
	return len(s.runs) == 0
}

// Min returns the smallest member.
func (s Set) Min() (int, bool) {
	if len(s.runs) == 0 {
		return 0, false
	}
	return s.runs[0].Start, true
}

// Max returns the largest member.
func (s Set) Max() (int, bool) {
	if len(s.runs) == 0 {
		return 0, false
	}
	return s.runs[len(s.runs)-1].End, true
}

// Bounds returns the run spanning the smallest through the largest member.
func (s Set) Bounds() (Run, bool) {
	if len(s.runs) == 0 {
		return Run{}, false
	}
	return Run{Start: s.runs[0].Start, End: s.runs[len(s.runs)-1].End}, true
}

// Members expands the set into ascending frame numbers.
func (s Set) Members() []int {
	out := make([]int, 0, s.Len())
	for _, r := range s.runs {
		for f := r.Start; f <= r.End; f++ {
			out = append(out, f)
		}
	}
	return out
}

// Contains reports whether frame is a member.
func (s Set) Contains(frame int) bool {
	idx := sort.Search(len(s.runs), func(i int) bool { return s.runs[i].End >= frame })
	return idx < len(s.runs) && s.runs[idx].Start <= frame
}

// Equal reports whether both sets hold the same members.
func (s Set) Equal(other Set) bool {
	if len(s.runs) != len(other.runs) {
		return false
	}
	for i := range s.runs {
		if s.runs[i] != other.runs[i] {
			return false
		}
	}
	return true
}

// Union returns the members present in either set.
func (s Set) Union(other Set) Set {
	runs := make([]Run, 0, len(s.runs)+len(other.runs))
	runs = append(runs, s.runs...)
	runs = append(runs, other.runs...)
	return Set{runs: normalize(runs)}
}

// Dilate widens every maximal run by n frames on both sides, clamping at
// zero and MaxFrame, and merges runs that come to touch or overlap. A
// negative n is treated as zero.
func (s Set) Dilate(n int) Set {
	n = min(max(n, 0), MaxFrame)
	runs := make([]Run, len(s.runs))
	for i, r := range s.runs {
		runs[i] = Run{Start: max(r.Start-n, 0), End: min(r.End, MaxFrame-n) + n}
	}
	return Set{runs: normalize(runs)}
}

// Intersect returns the members present in both sets.
func (s Set) Intersect(other Set) Set {
	var out []Run
	i, j := 0, 0
	for i < len(s.runs) && j < len(other.runs) {
		a, b := s.runs[i], other.runs[j]
		start := max(a.Start, b.Start)
		end := min(a.End, b.End)
		if start <= end {
			out = append(out, Run{Start: start, End: end})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return Set{runs: out}
}

// Difference returns the members of s that are not in other.
func (s Set) Difference(other Set) Set {
	var out []Run
	j := 0
	for _, r := range s.runs {
		start := r.Start
		for j < len(other.runs) && other.runs[j].End < start {
			j++
		}
		k := j
		for k < len(other.runs) && other.runs[k].Start <= r.End {
			cut := other.runs[k]
			if cut.Start > start {
				out = append(out, Run{Start: start, End: cut.Start - 1})
			}
			start = cut.End + 1
			if start > r.End {
				break
			}
			k++
		}
		if start <= r.End {
			out = append(out, Run{Start: start, End: r.End})
		}
	}
	return Set{runs: out}
}

func normalize(runs []Run) []Run {
	if len(runs) == 0 {
		return nil
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Start == runs[j].Start {
			return runs[i].End < runs[j].End
		}
		return runs[i].Start < runs[j].Start
	})
	out := make([]Run, 0, len(runs))
	current := runs[0]
	for _, r := range runs[1:] {
		if r.Start <= current.End+1 {
			if r.End > current.End {
				current.End = r.End
			}
			continue
		}
		out = append(out, current)
		current = r
	}
	return append(out, current)
}
