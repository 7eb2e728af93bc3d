package records

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"
)

// maxLineSize bounds a single raw record line (a whole HTML document plus
// envelope). 64 MiB is far beyond any page worth keeping.
const maxLineSize = 64 * 1024 * 1024

// LineReader streams a JSONL file line by line without loading it into
// memory. Files ending in .gz are decompressed transparently.
type LineReader struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
}

func OpenLines(path string) (*LineReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &LineReader{file: file}
	var src io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		r.gz = gz
		src = gz
	}

	r.scanner = bufio.NewScanner(src)
	r.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return r, nil
}

// Next returns the next non-empty line. ok is false at end of input.
func (r *LineReader) Next() (line string, ok bool) {
	for r.scanner.Scan() {
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		return text, true
	}
	return "", false
}

// Err reports any scanning error other than EOF.
func (r *LineReader) Err() error {
	return r.scanner.Err()
}

func (r *LineReader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.file.Close()
}

// NextBatch collects up to n lines. ok is false once the reader is drained
// and the returned batch is empty.
func (r *LineReader) NextBatch(n int) (batch []string, ok bool) {
	for len(batch) < n {
		line, more := r.Next()
		if !more {
			break
		}
		batch = append(batch, line)
	}
	return batch, len(batch) > 0
}
