package logger

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// JSONLogger appends audit rows as JSON Lines, one object per row keyed by
// the header columns plus a "timestamp" field.
type JSONLogger struct {
	file       *os.File
	buf        *bufio.Writer
	path       string
	columns    []string
	rowCount   int
	lastFlush  time.Time
	flushEvery int
}

// NewJSONLogger opens (or creates) the .jsonl audit file for toolName/action.
func NewJSONLogger(dir, toolName, action string) (*JSONLogger, error) {
	path := logFilePath(dir, toolName, action, "jsonl")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not create JSON log file: %w", err)
	}

	return &JSONLogger{
		file:       file,
		buf:        bufio.NewWriter(file),
		path:       path,
		lastFlush:  time.Now(),
		flushEvery: 10,
	}, nil
}

// WriteHeader registers the column names used as keys; nothing is written.
func (l *JSONLogger) WriteHeader(columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("JSON logger needs at least one column")
	}
	l.columns = append([]string(nil), columns...)
	return nil
}

// WriteRow encodes the row as a single JSON object.
func (l *JSONLogger) WriteRow(row []string) error {
	if l.columns == nil {
		return fmt.Errorf("JSON logger has no columns: call WriteHeader first")
	}
	if len(row) != len(l.columns) {
		return fmt.Errorf("row has %d values, header has %d columns", len(row), len(l.columns))
	}

	obj := make(map[string]string, len(row)+1)
	obj["timestamp"] = timestamp()
	for i, col := range l.columns {
		obj[col] = row[i]
	}

	line, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode JSON row: %w", err)
	}
	if _, err := l.buf.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON row: %w", err)
	}

	l.rowCount++
	if l.rowCount%l.flushEvery == 0 || time.Since(l.lastFlush) > 5*time.Second {
		l.lastFlush = time.Now()
		if err := l.buf.Flush(); err != nil {
			return fmt.Errorf("failed to flush JSON log: %w", err)
		}
	}
	return nil
}

// ShouldWriteHeader reports whether the file is still empty. JSON Lines have
// no header line, but WriteHeader must still be called on every instance
// to register the columns.
func (l *JSONLogger) ShouldWriteHeader() (bool, error) {
	fileInfo, err := l.file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat JSON log file: %w", err)
	}
	return fileInfo.Size() == 0 && l.buf.Buffered() == 0, nil
}

// Path returns the log file location.
func (l *JSONLogger) Path() string {
	return l.path
}

// Close flushes buffered rows and closes the file.
func (l *JSONLogger) Close() error {
	if l.buf != nil {
		if err := l.buf.Flush(); err != nil {
			return fmt.Errorf("error flushing JSON log on close: %w", err)
		}
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
