package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/graph"
)

const (
	// BodyFileName holds the rendered message body.
	BodyFileName = "Email Content.html"
	// AttachmentPrefix precedes each exported attachment name.
	AttachmentPrefix = "Attachment - "
)

// AttachmentLister lists the attachments of a message.
type AttachmentLister interface {
	ListAttachments(ctx context.Context, user, messageID string) ([]graph.Attachment, error)
}

// ContentExporter writes a message body and its attachments into the
// message's export directory.
type ContentExporter struct {
	source AttachmentLister
	out    io.Writer
	logger *slog.Logger
}

func NewContentExporter(source AttachmentLister, out io.Writer, log *slog.Logger) *ContentExporter {
	return &ContentExporter{source: source, out: out, logger: log}
}

// ExportBody writes body.content to BodyFileName when it is non-empty and
// reports whether a file was written.
func (e *ContentExporter) ExportBody(rec Record, dir string) (bool, error) {
	content := rec.BodyContent()
	if content == "" {
		logger.Warning(e.out, "   -> Message body content not found or empty.")
		return false, nil
	}

	path := filepath.Join(dir, BodyFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write message body: %w", err)
	}
	logger.LogDebug(e.logger, "Exported message body", "path", path, "bytes", len(content))
	return true, nil
}

// ExportAttachments writes every attachment of the message as
// "Attachment - <name>" and returns the names written. A failed listing is
// reported and yields no attachments; a failure on one attachment does not
// stop the others.
func (e *ContentExporter) ExportAttachments(ctx context.Context, rec Record, user, dir string) ([]string, error) {
	attachments, err := e.source.ListAttachments(ctx, user, rec.ID())
	if err != nil {
		var statusErr *graph.StatusError
		if !errors.As(err, &statusErr) {
			return nil, err
		}
		fetchErr := &AttachmentFetchError{MessageID: rec.ID(), Err: err}
		logger.Warning(e.out, "   -> Could not retrieve attachments. Status: %d", statusErr.StatusCode)
		logger.LogDebug(e.logger, "Attachment listing failed", "error", fetchErr)
		return nil, nil
	}

	if len(attachments) == 0 {
		logger.Info(e.out, "   -> No attachments found for this message.")
		return nil, nil
	}

	logger.Info(e.out, "   -> Found %d attachment(s). Exporting...", len(attachments))
	var written []string
	for _, att := range attachments {
		if err := writeAttachment(att, dir); err != nil {
			logger.Error(e.out, "     Failed to export attachment '%s': %v", att.Name, errors.Unwrap(err))
			logger.LogWarn(e.logger, "Attachment export failed", "error", err)
			continue
		}
		written = append(written, att.Name)
	}
	return written, nil
}

func writeAttachment(att graph.Attachment, dir string) error {
	if att.Content == nil {
		return &AttachmentWriteError{Name: att.Name, Err: fmt.Errorf("no content payload (type %s)", att.ODataType)}
	}

	path := filepath.Join(dir, AttachmentPrefix+SanitizeName(att.Name))
	if err := os.WriteFile(path, att.Content, 0644); err != nil {
		return &AttachmentWriteError{Name: att.Name, Err: err}
	}
	return nil
}
