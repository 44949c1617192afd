package encode

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// removeFile is replaced in tests to simulate files that cannot be deleted.
var removeFile = os.Remove

// ValidOutputPath clears path for writing. An existing file is removed; when
// that fails the name is mangled to <stem>_<n><ext> and the next candidate
// is tried, up to retries times. The returned path does not exist.
func ValidOutputPath(path string, retries int) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("output path is empty")
	}
	if retries < 0 {
		retries = 0
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	candidate := path
	var lastErr error
	for attempt := 1; attempt <= retries+1; attempt++ {
		err := removeFile(candidate)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		lastErr = err
		candidate = fmt.Sprintf("%s_%d%s", stem, attempt, ext)
	}
	return "", &OutputPathCollisionError{Path: path, Attempts: retries + 1, Err: lastErr}
}
