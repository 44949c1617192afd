// Package chunk splits ordered work into fixed-size pieces, folding an
// undersized remainder into the piece before it.
package chunk

import "reelforge/internal/framerange"

// Split partitions items, in order, into pieces of size items. When the
// final piece holds tolerance items or fewer it is appended to the previous
// piece instead of standing alone. A tolerance at or above size is treated as
// zero, and a non-positive size yields a single piece.
func Split[T any](items []T, size, tolerance int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || len(items) <= size {
		return [][]T{append([]T(nil), items...)}
	}
	if tolerance >= size || tolerance < 0 {
		tolerance = 0
	}

	pieces := make([][]T, 0, len(items)/size+1)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		pieces = append(pieces, append([]T(nil), items[start:end]...))
	}
	last := pieces[len(pieces)-1]
	if len(pieces) > 1 && len(last) <= tolerance {
		prev := len(pieces) - 2
		pieces[prev] = append(pieces[prev], last...)
		pieces = pieces[:len(pieces)-1]
	}
	return pieces
}

// Frames splits the members of r, in ascending order, into sets of size
// frames using Split's tolerance rule. Pieces are cut from r's runs, so the
// cost follows the number of pieces rather than the number of frames.
func Frames(r framerange.Set, size, tolerance int) []framerange.Set {
	total := r.Len()
	if total == 0 {
		return nil
	}
	if size <= 0 || total <= size {
		return []framerange.Set{framerange.FromRuns(r.Runs()...)}
	}
	if tolerance >= size || tolerance < 0 {
		tolerance = 0
	}

	out := make([]framerange.Set, 0, total/size+1)
	var current []framerange.Run
	need := size
	for _, run := range r.Runs() {
		for start := run.Start; start <= run.End; {
			take := min(run.End-start+1, need)
			current = append(current, framerange.Run{Start: start, End: start + take - 1})
			start += take
			need -= take
			if need == 0 {
				out = append(out, framerange.FromRuns(current...))
				current, need = nil, size
			}
		}
	}
	if len(current) > 0 {
		rest := framerange.FromRuns(current...)
		if last := len(out) - 1; size-need <= tolerance {
			out[last] = out[last].Union(rest)
		} else {
			out = append(out, rest)
		}
	}
	return out
}
