package textutil

import (
	"strings"
	"unicode"
)

// maxTokenLength bounds worker ids so log file names stay short.
const maxTokenLength = 64

// SanitizeFileName makes name usable as a single path element. Path
// separators, colons and asterisks become dashes, shell-hostile characters
// and control characters are dropped, and runs of whitespace collapse to one
// space.
func SanitizeFileName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			b.WriteByte('-')
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			continue
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
		space = false
	}
	return strings.TrimSpace(b.String())
}

// SanitizeToken turns a host name or operator supplied label into a worker
// id: lowercase ASCII letters, digits, dots, dashes and underscores, with
// every other run of characters folded into one underscore. Empty results
// become "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	folded := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
			folded = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			folded = false
		default:
			if !folded {
				b.WriteByte('_')
			}
			folded = true
		}
	}
	out := strings.Trim(b.String(), "_-.")
	if len(out) > maxTokenLength {
		out = strings.TrimRight(out[:maxTokenLength], "_-.")
	}
	if out == "" {
		return "unknown"
	}
	return out
}
