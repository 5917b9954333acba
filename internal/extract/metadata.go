package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MetadataFileName is the consolidated table written to the output root.
const MetadataFileName = "Email Metadata.csv"

// excludedColumns are exported as content, not as table cells.
var excludedColumns = map[string]bool{
	"body":        true,
	"bodyPreview": true,
}

// Columns returns the sorted union of field names across records, minus
// the excluded content fields.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for field := range rec {
			if !excludedColumns[field] {
				seen[field] = true
			}
		}
	}

	cols := make([]string, 0, len(seen))
	for field := range seen {
		cols = append(cols, field)
	}
	sort.Strings(cols)
	return cols
}

// WriteMetadata writes one row per record, in order, to MetadataFileName
// in dir. The file starts with a UTF-8 byte order mark and uses CRLF line
// endings so spreadsheet tools open it cleanly.
func WriteMetadata(records []Record, dir string) (string, error) {
	path := filepath.Join(dir, MetadataFileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer f.Close()

	bom := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	w := csv.NewWriter(bom)
	w.UseCRLF = true

	cols := Columns(records)
	if err := w.Write(cols); err != nil {
		return "", fmt.Errorf("failed to write metadata header: %w", err)
	}

	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			cell, err := renderCell(rec[col])
			if err != nil {
				return "", fmt.Errorf("failed to render %s: %w", col, err)
			}
			row[i] = cell
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write metadata row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush metadata: %w", err)
	}
	if err := bom.Close(); err != nil {
		return "", fmt.Errorf("failed to flush metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close metadata file: %w", err)
	}
	return path, nil
}

// renderCell turns a field value into table text: strings as-is, absent
// or null as empty, numbers verbatim, objects and arrays as compact JSON.
func renderCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
	}
}
