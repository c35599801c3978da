// Package ui renders panel events for terminal output.
package ui

import (
	"fmt"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent   = 74  // blue
	colorMuted    = 245 // medium gray
	colorCritical = 203 // red
)

var noColor bool

func paint(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCritical returns s in the critical (red) color.
func RenderCritical(s string) string { return paint(colorCritical, s) }

// RenderKind styles an event kind by its criticality.
func RenderKind(kind model.EventKind) string {
	if events.IsCritical(kind) {
		return RenderCritical(string(kind))
	}
	return RenderAccent(string(kind))
}

// FormatEntry renders one event log entry as a single line.
func FormatEntry(e *model.EventLogEntry) string {
	return fmt.Sprintf("%s  %-16s %s",
		RenderMuted(e.Timestamp.Local().Format(time.DateTime)),
		RenderKind(e.Type),
		e.Message,
	)
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
