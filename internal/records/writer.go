package records

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crawlzilla/crawlzilla/pkg/failure"
)

/*
 Round file writers

 One raw file and one parsed file exist per round. Both are written under a
 tmp_ name and become visible only via Finalize's atomic rename; an abandoned
 writer removes its temp file so a crashed round leaves nothing half-visible.
 Writes are serialized by a single mutex per writer.
*/

// RoundFileName returns the zero-padded JSONL name for a round,
// e.g. "00003.json" or "00003.json.gz".
func RoundFileName(round int, compress bool) string {
	name := fmt.Sprintf("%05d.json", round)
	if compress {
		name += ".gz"
	}
	return name
}

// LineWriter appends newline-terminated lines to a temp file, optionally
// gzip-compressed, and renames it into place on Finalize.
type LineWriter struct {
	mu        sync.Mutex
	file      *os.File
	gz        *gzip.Writer
	buf       *bufio.Writer
	tmpPath   string
	finalPath string
	closed    bool
}

// NewLineWriter creates the temp file tmp_<name> in dir. The final file will
// be dir/<name>.
func NewLineWriter(dir, name string, compress bool) (*LineWriter, failure.ClassifiedError) {
	tmpPath := filepath.Join(dir, "tmp_"+name)
	file, err := os.Create(tmpPath)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Cause: ErrCauseOpenFailure, Path: tmpPath}
	}

	w := &LineWriter{
		file:      file,
		tmpPath:   tmpPath,
		finalPath: filepath.Join(dir, name),
	}
	if compress {
		w.gz = gzip.NewWriter(file)
		w.buf = bufio.NewWriter(w.gz)
	} else {
		w.buf = bufio.NewWriter(file)
	}
	return w, nil
}

// WriteLine appends one line. The payload must not contain a newline.
func (w *LineWriter) WriteLine(line []byte) failure.ClassifiedError {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.buf.Write(line); err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: w.tmpPath}
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: w.tmpPath}
	}
	return nil
}

// WriteJSONLine marshals v and appends it as one line.
func (w *LineWriter) WriteJSONLine(v any) failure.ClassifiedError {
	data, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: w.tmpPath}
	}
	return w.WriteLine(data)
}

// Finalize flushes, closes and renames the temp file to its final name.
func (w *LineWriter) Finalize() failure.ClassifiedError {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseRenameError, Path: w.finalPath}
	}
	return nil
}

// Abandon closes the writer and removes the temp file. Safe to call after
// Finalize, where it does nothing.
func (w *LineWriter) Abandon() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	_ = w.closeLocked()
	_ = os.Remove(w.tmpPath)
}

func (w *LineWriter) closeLocked() failure.ClassifiedError {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseCloseFailure, Path: w.tmpPath}
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return &StorageError{Message: err.Error(), Cause: ErrCauseCloseFailure, Path: w.tmpPath}
		}
	}
	if err := w.file.Close(); err != nil {
		return &StorageError{Message: err.Error(), Cause: ErrCauseCloseFailure, Path: w.tmpPath}
	}
	return nil
}
