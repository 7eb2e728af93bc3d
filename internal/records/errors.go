package records

import (
	"fmt"

	"github.com/crawlzilla/crawlzilla/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseOpenFailure  StorageErrorCause = "open failure"
	ErrCauseWriteFailure StorageErrorCause = "write failure"
	ErrCauseCloseFailure StorageErrorCause = "close failure"
	ErrCauseRenameError  StorageErrorCause = "rename error"
)

// StorageError is fatal for the round: temp files must never be renamed
// after a failed write, so the coordinator aborts and retries the round on
// the next run.
type StorageError struct {
	Message string
	Cause   StorageErrorCause
	Path    string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %s (%s)", e.Cause, e.Message, e.Path)
}

func (e *StorageError) Severity() failure.Severity {
	return failure.SeverityFatal
}
