package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no searched folder holds the message.
	ErrNotFound = errors.New("message not found in any searched folder")
	// ErrInvalidMessageID means the identifier was rejected before any
	// request was made.
	ErrInvalidMessageID = errors.New("invalid message ID")
)

// FolderQueryError is a non-2xx answer to a single folder search. The
// folder is treated as a miss and the search continues.
type FolderQueryError struct {
	Folder string
	Err    error
}

func (e *FolderQueryError) Error() string {
	return fmt.Sprintf("query of folder %s failed: %v", e.Folder, e.Err)
}

func (e *FolderQueryError) Unwrap() error { return e.Err }

// AttachmentFetchError is a non-2xx answer to the attachment list request.
type AttachmentFetchError struct {
	MessageID string
	Err       error
}

func (e *AttachmentFetchError) Error() string {
	return fmt.Sprintf("could not retrieve attachments of message %s: %v", e.MessageID, e.Err)
}

func (e *AttachmentFetchError) Unwrap() error { return e.Err }

// AttachmentWriteError is a decode or write failure for one attachment.
type AttachmentWriteError struct {
	Name string
	Err  error
}

func (e *AttachmentWriteError) Error() string {
	return fmt.Sprintf("failed to export attachment '%s': %v", e.Name, e.Err)
}

func (e *AttachmentWriteError) Unwrap() error { return e.Err }

// InputError means no usable message identifiers were supplied.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *InputError) Unwrap() error { return e.Err }
