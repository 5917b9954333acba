package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/common/validation"
	"msgraphextract/internal/graph"
)

// MessageSearcher finds messages by Internet Message-ID in one folder, or
// in the whole mailbox when folderID is empty.
type MessageSearcher interface {
	ListMessages(ctx context.Context, user, folderID, internetMessageID string) ([]graph.Message, error)
}

// Match is a resolved message and the folder it was found in.
type Match struct {
	Record Record
	Folder string
}

// Resolver searches an ordered list of folders for a message.
type Resolver struct {
	source  MessageSearcher
	folders []Folder
	out     io.Writer
	logger  *slog.Logger
}

// NewResolver searches folders in order; nil folders means DefaultFolders.
func NewResolver(source MessageSearcher, folders []Folder, out io.Writer, log *slog.Logger) *Resolver {
	if folders == nil {
		folders = DefaultFolders
	}
	return &Resolver{source: source, folders: folders, out: out, logger: log}
}

// Resolve returns the first match for messageID, searching folders in
// order. A folder that answers with an HTTP error is skipped. It returns
// ErrNotFound when every folder misses and ErrInvalidMessageID without any
// request when the identifier cannot be searched for. Transport and
// context errors are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, messageID, user string) (*Match, error) {
	if err := validation.ValidateMessageID(messageID); err != nil {
		logger.Warning(r.out, "Skipping invalid Message ID %q: %v", messageID, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessageID, err)
	}

	logger.Info(r.out, "Searching for Message ID: %s", messageID)
	for _, folder := range r.folders {
		logger.Info(r.out, "  -> Checking in folder: %s...", folder.Name)

		msgs, err := r.source.ListMessages(ctx, user, folder.ID, messageID)
		if err != nil {
			var statusErr *graph.StatusError
			if !errors.As(err, &statusErr) {
				return nil, err
			}
			queryErr := &FolderQueryError{Folder: folder.Name, Err: err}
			logger.Warning(r.out, "     API error checking %s. Status: %d. Skipping folder.", folder.Name, statusErr.StatusCode)
			logger.LogDebug(r.logger, "Folder query failed", "error", queryErr)
			if statusErr.Throttled() {
				logger.LogWarn(r.logger, "Graph throttled the folder query", "folder", folder.Name, "retryAfter", statusErr.RetryAfter)
			}
			continue
		}

		if len(msgs) == 0 {
			continue
		}

		logger.Success(r.out, "     Found in %s.", folder.Name)
		rec := Normalize(msgs[0])
		imid := rec.InternetMessageID()
		if imid == "" {
			imid = "N/A"
		}
		logger.Success(r.out, "Found Email '%s' (ID: %s)", rec.Subject(), imid)
		return &Match{Record: rec, Folder: folder.Name}, nil
	}

	logger.Warning(r.out, "Could not find message with ID: %s in any of the checked folders.", messageID)
	return nil, ErrNotFound
}
