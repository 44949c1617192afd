package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"reelforge/internal/framerange"
	"reelforge/internal/sequence"
)

// Policy selects how frame tokens are computed.
type Policy string

const (
	// PolicyMTime tokens are nanosecond modification times.
	PolicyMTime Policy = "mtime"
	// PolicyHash tokens are hex MD5 digests of the file contents.
	PolicyHash Policy = "hash"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyMTime, "":
		return PolicyMTime, nil
	case PolicyHash:
		return PolicyHash, nil
	default:
		return "", fmt.Errorf("unknown fingerprint policy %q (want mtime or hash)", value)
	}
}

// Fingerprint maps frame file names to their tokens.
type Fingerprint map[string]string

// Key normalizes a frame file name so that decomposed and composed Unicode
// spellings of the same name compare equal.
func Key(name string) string {
	return norm.NFC.String(name)
}

// Keys returns the sorted keys of fp.
func (fp Fingerprint) Keys() []string {
	keys := make([]string, 0, len(fp))
	for k := range fp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both fingerprints hold the same keys and tokens.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	if len(fp) != len(other) {
		return false
	}
	for k, v := range fp {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// ScopeKeys returns the keys of every frame slot in r, present or not.
func ScopeKeys(desc sequence.Descriptor, r framerange.Set) []string {
	members := r.Members()
	keys := make([]string, 0, len(members))
	for _, frame := range members {
		keys = append(keys, Key(desc.FrameName(frame)))
	}
	return keys
}

// Current computes tokens for the frames of r that exist on disk.
func Current(desc sequence.Descriptor, r framerange.Set, policy Policy) (Fingerprint, error) {
	fp := make(Fingerprint, r.Len())
	for _, frame := range r.Members() {
		path := desc.FrameFile(frame)
		token, err := tokenFor(path, policy)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("fingerprint frame %d: %w", frame, err)
		}
		fp[Key(desc.FrameName(frame))] = token
	}
	return fp, nil
}

func tokenFor(path string, policy Policy) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fs.ErrNotExist
	}
	switch policy {
	case PolicyHash:
		return hashFile(path)
	default:
		return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
	}
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hasher := md5.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Diff classifies every key of two fingerprints. Each slice is sorted.
type Diff struct {
	Added     []string
	Removed   []string
	Modified  []string
	Unchanged []string
}

// Compare diffs a previously persisted fingerprint against a fresh one.
func Compare(previous, current Fingerprint) Diff {
	var d Diff
	for key, token := range current {
		prior, ok := previous[key]
		switch {
		case !ok:
			d.Added = append(d.Added, key)
		case prior != token:
			d.Modified = append(d.Modified, key)
		default:
			d.Unchanged = append(d.Unchanged, key)
		}
	}
	for key := range previous {
		if _, ok := current[key]; !ok {
			d.Removed = append(d.Removed, key)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Modified)
	sort.Strings(d.Unchanged)
	return d
}

// Changed returns the added, removed, and modified keys, sorted.
func (d Diff) Changed() []string {
	out := make([]string, 0, len(d.Added)+len(d.Removed)+len(d.Modified))
	out = append(out, d.Added...)
	out = append(out, d.Removed...)
	out = append(out, d.Modified...)
	sort.Strings(out)
	return out
}

// HasChanges reports whether anything was added, removed, or modified.
func (d Diff) HasChanges() bool {
	return len(d.Added)+len(d.Removed)+len(d.Modified) > 0
}
