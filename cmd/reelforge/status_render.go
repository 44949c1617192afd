package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"reelforge/internal/jobgraph"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

var statusPalette = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

// renderStatusLine renders "  Label:   [KIND] message" with the label padded
// so the brackets line up across a section.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusPalette[kind]
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	return paint(fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge), style.color, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(heading, ansiBlue, colorize),
		paint(strings.Repeat("-", len(heading)), ansiBlue, colorize),
	}
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// unitStatusKind maps a job or unit status onto the status palette.
func unitStatusKind(status string) statusKind {
	switch jobgraph.Status(status) {
	case jobgraph.StatusComplete:
		return statusOK
	case jobgraph.StatusFailed:
		return statusError
	case jobgraph.StatusBlocked:
		return statusWarn
	default:
		return statusInfo
	}
}

// renderUnitStatus colours a status cell for table output. Pending units
// stay plain so the table draws attention to everything else.
func renderUnitStatus(status string, colorize bool) string {
	if jobgraph.Status(status) == jobgraph.StatusPending {
		return status
	}
	return paint(status, statusPalette[unitStatusKind(status)].color, colorize)
}
