package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/graph"
)

// Audit log columns and status values.
var AuditColumns = []string{"Message ID", "Status", "Folder", "Export Directory", "Attachments"}

const (
	StatusFound    = "FOUND"
	StatusNotFound = "NOT FOUND"
	StatusInvalid  = "INVALID"
)

// Summary counts the outcome of a run.
type Summary struct {
	Processed int
	Found     int
	NotFound  int
}

// Runner drives one extraction: authenticate, resolve each identifier in
// order, export what was found, then write the metadata table.
type Runner struct {
	Auth     graph.Authorizer
	Resolver *Resolver
	Exporter *ContentExporter

	// ExportContent writes bodies and attachments; when false only the
	// directories and the metadata table are produced.
	ExportContent bool

	// Audit receives one row per identifier. Optional.
	Audit  logger.Logger
	Out    io.Writer
	Logger *slog.Logger
}

// Run processes ids for user, writing into exportDir. Authentication
// failures and unexpected errors abort the run; not-found identifiers and
// per-folder or per-attachment failures do not.
func (r *Runner) Run(ctx context.Context, user, exportDir string, ids []string) (Summary, error) {
	var summary Summary

	if _, err := r.Auth.Authorization(ctx); err != nil {
		return summary, err
	}

	if info, err := os.Stat(exportDir); err != nil || !info.IsDir() {
		if err := os.MkdirAll(exportDir, 0755); err != nil {
			return summary, fmt.Errorf("failed to create output directory: %w", err)
		}
		logger.Info(r.Out, "Created output directory: %s", exportDir)
	}

	logger.Info(r.Out, "Processing %d message ID(s) for user %s...", len(ids), user)

	var records []Record
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++

		match, err := r.Resolver.Resolve(ctx, id, user)
		switch {
		case errors.Is(err, ErrNotFound):
			summary.NotFound++
			r.audit(id, StatusNotFound, "", "", nil)
			continue
		case errors.Is(err, ErrInvalidMessageID):
			summary.NotFound++
			r.audit(id, StatusInvalid, "", "", nil)
			continue
		case err != nil:
			return summary, fmt.Errorf("error searching for message %s: %w", id, err)
		}

		summary.Found++
		rec := match.Record

		dir, err := CreateExportDir(exportDir, rec.Subject())
		if err != nil {
			return summary, err
		}
		logger.LogDebug(r.Logger, "Created message directory", "path", dir, "folder", match.Folder)

		var attachments []string
		if r.ExportContent {
			if _, err := r.Exporter.ExportBody(rec, dir); err != nil {
				return summary, err
			}
			attachments, err = r.Exporter.ExportAttachments(ctx, rec, user, dir)
			if err != nil {
				return summary, fmt.Errorf("error exporting attachments of %s: %w", id, err)
			}
			logger.Success(r.Out, "Exported Message Content and Attachments for %s", rec.Subject())
		}

		records = append(records, rec)
		r.audit(id, StatusFound, match.Folder, dir, attachments)
	}

	printSummary(r.Out, summary)

	if len(records) == 0 {
		logger.Warning(r.Out, "No messages were found, skipping metadata export.")
		return summary, nil
	}

	path, err := WriteMetadata(records, exportDir)
	if err != nil {
		return summary, err
	}
	logger.Success(r.Out, "Exported Message Metadata")
	logger.LogDebug(r.Logger, "Metadata written", "path", path, "rows", len(records))
	return summary, nil
}

func (r *Runner) audit(id, status, folder, dir string, attachments []string) {
	if r.Audit == nil {
		return
	}
	row := []string{id, status, folder, dir, strings.Join(attachments, AddressSeparator)}
	if err := r.Audit.WriteRow(row); err != nil {
		logger.LogWarn(r.Logger, "Could not write audit row", "error", err)
	}
}

func printSummary(w io.Writer, s Summary) {
	logger.Success(w, "--- Search Summary ---")
	logger.Success(w, "Total IDs processed: %d", s.Processed)
	logger.Success(w, "Messages Found:      %d", s.Found)
	logger.Warning(w, "Messages Not Found:  %d", s.NotFound)
	logger.Success(w, "----------------------")
}
