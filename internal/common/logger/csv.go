package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// CSVLogger appends audit rows to a CSV file with periodic buffering.
type CSVLogger struct {
	writer     *csv.Writer
	file       *os.File
	path       string
	rowCount   int       // rows written since the logger was opened
	lastFlush  time.Time // time of last flush
	flushEvery int       // flush every N rows
}

// NewCSVLogger opens (or creates) the audit file for toolName/action.
//
// Example file name: _msgraphextract_extract_2026-10-19.csv
func NewCSVLogger(dir, toolName, action string) (*CSVLogger, error) {
	path := logFilePath(dir, toolName, action, "csv")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not create CSV log file: %w", err)
	}

	return &CSVLogger{
		writer:     csv.NewWriter(file),
		file:       file,
		path:       path,
		lastFlush:  time.Now(),
		flushEvery: 10,
	}, nil
}

// WriteHeader writes the header row, prefixed with a Timestamp column.
func (l *CSVLogger) WriteHeader(columns []string) error {
	header := append([]string{"Timestamp"}, columns...)
	if err := l.writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

// WriteRow appends a timestamped row. Rows are flushed every N rows or
// every 5 seconds.
func (l *CSVLogger) WriteRow(row []string) error {
	if l.writer == nil {
		return fmt.Errorf("CSV writer is not initialized")
	}

	fullRow := append([]string{timestamp()}, row...)
	if err := l.writer.Write(fullRow); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}

	l.rowCount++
	if l.rowCount%l.flushEvery == 0 || time.Since(l.lastFlush) > 5*time.Second {
		l.writer.Flush()
		l.lastFlush = time.Now()
		if err := l.writer.Error(); err != nil {
			return fmt.Errorf("failed to flush CSV: %w", err)
		}
	}

	return nil
}

// ShouldWriteHeader reports whether the file is still empty.
func (l *CSVLogger) ShouldWriteHeader() (bool, error) {
	fileInfo, err := l.file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat CSV file: %w", err)
	}
	return fileInfo.Size() == 0, nil
}

// Path returns the log file location.
func (l *CSVLogger) Path() string {
	return l.path
}

// Close flushes buffered rows and closes the file.
func (l *CSVLogger) Close() error {
	if l.writer != nil {
		l.writer.Flush()
		if err := l.writer.Error(); err != nil {
			return fmt.Errorf("error flushing CSV on close: %w", err)
		}
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
