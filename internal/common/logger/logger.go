// Package logger provides the console, diagnostic and audit logging used by
// msgraphextract: stateless severity status lines for the operator, a slog
// logger for diagnostics, and an append-only audit log (CSV or JSON Lines)
// recording the outcome of every processed message ID.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger is the audit log sink. Implementations append rows to a file that
// lives across runs of the same day.
type Logger interface {
	// WriteHeader records the column names. Must be called before WriteRow.
	WriteHeader(columns []string) error
	// WriteRow appends one row; a timestamp is added automatically.
	WriteRow(row []string) error
	// ShouldWriteHeader reports whether the underlying file is empty.
	ShouldWriteHeader() (bool, error)
	// Path returns the file the logger writes to.
	Path() string
	// Close flushes and closes the file.
	Close() error
}

// LogFormat selects the audit log encoding.
type LogFormat string

const (
	LogFormatCSV  LogFormat = "csv"
	LogFormatJSON LogFormat = "json"
)

// ParseLogFormat validates a --log-format value.
func ParseLogFormat(s string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(s))) {
	case LogFormatCSV, "":
		return LogFormatCSV, nil
	case LogFormatJSON, "jsonl":
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (valid: csv, json)", s)
	}
}

// NewLogger opens an audit logger of the given format in dir.
// An empty dir means the system temp directory.
func NewLogger(format LogFormat, dir, toolName, action string) (Logger, error) {
	switch format {
	case LogFormatJSON:
		l, err := NewJSONLogger(dir, toolName, action)
		if err != nil {
			return nil, err
		}
		return l, nil
	case LogFormatCSV, "":
		l, err := NewCSVLogger(dir, toolName, action)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// Open creates an audit logger and prepares it for rows with the given
// columns. The CSV header is written only when the file is new.
func Open(format LogFormat, dir, toolName, action string, columns []string) (Logger, error) {
	l, err := NewLogger(format, dir, toolName, action)
	if err != nil {
		return nil, err
	}

	// JSON Lines have no header line, but every instance needs its columns.
	if jl, ok := l.(*JSONLogger); ok {
		if err := jl.WriteHeader(columns); err != nil {
			jl.Close()
			return nil, err
		}
		return jl, nil
	}

	shouldWrite, err := l.ShouldWriteHeader()
	if err != nil {
		l.Close()
		return nil, err
	}
	if shouldWrite {
		if err := l.WriteHeader(columns); err != nil {
			l.Close()
			return nil, err
		}
	}
	return l, nil
}

// logFilePath builds %TEMP%\_{toolName}_{action}_{date}.{ext}.
func logFilePath(dir, toolName, action, ext string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	dateStr := time.Now().Format("2006-01-02")
	return filepath.Join(dir, fmt.Sprintf("_%s_%s_%s.%s", toolName, action, dateStr, ext))
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
