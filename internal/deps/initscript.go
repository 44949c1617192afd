package deps

import (
	"fmt"
	"os"
	"strings"
)

// CheckInitScript reports whether the scene preparation script the encoder
// runs with -P exists and is readable.
func CheckInitScript(script string) Status {
	result := Status{
		Name:        "Init script",
		Command:     strings.TrimSpace(script),
		Description: "Loaded by the encoder to prepare scenes",
	}
	if result.Command == "" {
		result.Detail = "init script not configured"
		return result
	}
	info, err := os.Stat(result.Command)
	if err != nil {
		result.Detail = fmt.Sprintf("init script %q not found", result.Command)
		return result
	}
	if info.IsDir() {
		result.Detail = fmt.Sprintf("init script %q is a directory", result.Command)
		return result
	}
	file, err := os.Open(result.Command)
	if err != nil {
		result.Detail = fmt.Sprintf("init script %q not readable: %v", result.Command, err)
		return result
	}
	file.Close()
	result.Available = true
	return result
}
