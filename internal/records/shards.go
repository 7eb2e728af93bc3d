package records

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crawlzilla/crawlzilla/internal/langid"
	"github.com/crawlzilla/crawlzilla/pkg/failure"
	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
)

// ShardSet owns the per-round, per-language plain-text shard files under the
// text output directory. Writers open lazily on the first segment of their
// language and all close at round end. Appends are serialized by one mutex.
type ShardSet struct {
	mu      sync.Mutex
	dir     string
	round   int
	writers map[langid.Tag]*os.File
}

func NewShardSet(dir string, round int) *ShardSet {
	return &ShardSet{
		dir:     dir,
		round:   round,
		writers: make(map[langid.Tag]*os.File),
	}
}

// Append writes one segment text, newline-terminated, to the shard for tag.
func (s *ShardSet) Append(tag langid.Tag, text string) failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()

	writer, ok := s.writers[tag]
	if !ok {
		if err := fileutil.EnsureDir(s.dir); err != nil {
			return err
		}
		path := filepath.Join(s.dir, fmt.Sprintf("%05d_%s.txt", s.round, tag))
		file, err := os.Create(path)
		if err != nil {
			return &StorageError{Message: err.Error(), Cause: ErrCauseOpenFailure, Path: path}
		}
		s.writers[tag] = file
		writer = file
	}

	if _, err := writer.WriteString(text + "\n"); err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: writer.Name()}
	}
	return nil
}

// Close closes every open shard writer, keeping the first error.
func (s *ShardSet) Close() failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr failure.ClassifiedError
	for tag, writer := range s.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = &StorageError{Message: err.Error(), Cause: ErrCauseCloseFailure, Path: writer.Name()}
		}
		delete(s.writers, tag)
	}
	return firstErr
}
