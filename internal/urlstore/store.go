package urlstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/crawlzilla/crawlzilla/pkg/failure"
	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
)

/*
 URL stores - durable crawl state

 Two instances exist per crawl:
 - Frontier: ordered URLs awaiting fetch (urls2download.txt)
 - History:  URLs whose fetch attempt completed (downloaded_urls.txt)

 The store is a data structure + persistence module. It knows nothing about
 fetching, parsing or admission; the coordinator is its single writer.
*/

const (
	FrontierFileName = "urls2download.txt"
	HistoryFileName  = "downloaded_urls.txt"
)

// Store is a file-backed ordered sequence of URLs with set-membership lookup.
// Insertion order is preserved. Callers pre-filter for existing membership
// when duplicates matter; AddMany itself appends unconditionally.
type Store struct {
	path    string
	urls    []string
	members Set[string]
}

func NewFrontier(outputFolder string) *Store {
	return newStore(filepath.Join(outputFolder, FrontierFileName))
}

func NewHistory(outputFolder string) *Store {
	return newStore(filepath.Join(outputFolder, HistoryFileName))
}

func newStore(path string) *Store {
	return &Store{
		path:    path,
		members: NewSet[string](),
	}
}

// Load reads the backing file, one URL per line. A missing file yields an
// empty store. Lines are trimmed of surrounding whitespace and blank lines
// are dropped.
func (s *Store) Load() error {
	s.urls = nil
	s.members = NewSet[string]()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.urls = append(s.urls, line)
		s.members.Add(line)
	}
	return nil
}

// AddMany appends urls to the sequence, preserving order.
func (s *Store) AddMany(urls []string) {
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		s.urls = append(s.urls, u)
		s.members.Add(u)
	}
}

// Remove drops the given urls from the sequence.
func (s *Store) Remove(urls []string) {
	drop := NewSet[string]()
	for _, u := range urls {
		drop.Add(u)
	}

	kept := s.urls[:0]
	for _, u := range s.urls {
		if drop.Contains(u) {
			s.members.Remove(u)
			continue
		}
		kept = append(kept, u)
	}
	s.urls = kept
}

func (s *Store) Contains(u string) bool {
	return s.members.Contains(u)
}

// URLs returns the live sequence. Callers must not mutate it.
func (s *Store) URLs() []string {
	return s.urls
}

func (s *Store) Len() int {
	return len(s.urls)
}

func (s *Store) FileExists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Persist rewrites the backing file atomically: temp file, then rename.
func (s *Store) Persist() failure.ClassifiedError {
	var b strings.Builder
	for _, u := range s.urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		b.WriteString(u)
		b.WriteString("\n")
	}
	return fileutil.WriteFileAtomic(s.path, []byte(b.String()))
}
