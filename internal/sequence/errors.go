package sequence

import "fmt"

// InvalidSequenceError reports a path that does not follow the
// prefix-digits-extension naming convention.
type InvalidSequenceError struct {
	Path string
}

func (e *InvalidSequenceError) Error() string {
	return fmt.Sprintf("invalid sequence path %q: expected <prefix><frame digits>.<ext> with at least two frame digits", e.Path)
}

// EmptySequenceError reports a sequence with no frames on disk.
type EmptySequenceError struct {
	Folder   string
	Template string
}

func (e *EmptySequenceError) Error() string {
	return fmt.Sprintf("no frames found for %s in %s", e.Template, e.Folder)
}
