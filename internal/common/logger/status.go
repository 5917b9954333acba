package logger

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Severity categorizes an operator-facing status line.
type Severity string

const (
	SeverityInfo    Severity = "I"
	SeveritySuccess Severity = "S"
	SeverityWarning Severity = "W"
	SeverityError   Severity = "E"
)

var (
	colorInfo    = lipgloss.Color("6") // cyan
	colorSuccess = lipgloss.Color("2") // green
	colorWarning = lipgloss.Color("3") // yellow
	colorError   = lipgloss.Color("1") // red
)

// Tag returns the bracketed marker for the severity. Unknown severities
// render as "[?]".
func (s Severity) Tag() string {
	switch s {
	case SeverityInfo:
		return "[*]"
	case SeveritySuccess:
		return "[+]"
	case SeverityWarning:
		return "[!]"
	case SeverityError:
		return "[-]"
	default:
		return "[?]"
	}
}

func (s Severity) color() (lipgloss.Color, bool) {
	switch s {
	case SeverityInfo:
		return colorInfo, true
	case SeveritySuccess:
		return colorSuccess, true
	case SeverityWarning:
		return colorWarning, true
	case SeverityError:
		return colorError, true
	default:
		return "", false
	}
}

// FormatStatus renders "<tag> <msg>" without color.
func FormatStatus(sev Severity, msg string) string {
	return sev.Tag() + " " + msg
}

// PrintStatus writes one status line to w. The tag is colored only when w
// is a terminal that supports it.
func PrintStatus(w io.Writer, sev Severity, format string, args ...any) {
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)

	tag := sev.Tag()
	if c, ok := sev.color(); ok {
		style := lipgloss.NewRenderer(w).NewStyle().Foreground(c)
		if sev == SeverityError {
			style = style.Bold(true)
		}
		tag = style.Render(tag)
	}
	fmt.Fprintln(w, tag+" "+msg)
}

// Info prints an informational status line.
func Info(w io.Writer, format string, args ...any) {
	PrintStatus(w, SeverityInfo, format, args...)
}

// Success prints a success status line.
func Success(w io.Writer, format string, args ...any) {
	PrintStatus(w, SeveritySuccess, format, args...)
}

// Warning prints a warning status line.
func Warning(w io.Writer, format string, args ...any) {
	PrintStatus(w, SeverityWarning, format, args...)
}

// Error prints an error status line.
func Error(w io.Writer, format string, args ...any) {
	PrintStatus(w, SeverityError, format, args...)
}
