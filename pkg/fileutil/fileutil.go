package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crawlzilla/crawlzilla/pkg/failure"
)

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	target := filepath.Join(targetPath...)
	if err := os.MkdirAll(target, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// ReplaceFile atomically replaces dst with src via rename.
// src and dst must live on the same filesystem.
func ReplaceFile(src, dst string) failure.ClassifiedError {
	if err := os.Rename(src, dst); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCauseRenameError,
		}
	}
	return nil
}

// WriteFileAtomic writes data to path by writing a sibling temp file first and
// renaming it over the destination. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) failure.ClassifiedError {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCauseWriteError,
		}
	}
	return ReplaceFile(tmp, path)
}
