package robots

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
)

// Entry is one cached robots.txt lookup. A nil Body means no robots.txt was
// authoritatively retrieved for the origin (absent, wrong type, or the fetch
// failed); the gate fails open on such entries.
type Entry struct {
	Body      *string   `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache is the on-disk robots.txt cache: a JSON mapping from origin to entry.
// It survives process restarts. Get and Put are serialized by a mutex and
// every Put rewrites the backing file.
type Cache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[string]Entry
	now     func() time.Time
}

func NewCache(path string, ttl time.Duration) *Cache {
	c := &Cache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	c.load()
	return c
}

// load is best-effort: a missing or unreadable cache file yields an empty
// cache and the entries are refetched on demand.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	c.entries = entries
}

// Get returns the entry for origin if present and within the TTL.
func (c *Cache) Get(origin string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[origin]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

// Put stores an entry for origin and persists the cache.
func (c *Cache) Put(origin string, body *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[origin] = Entry{Body: body, FetchedAt: c.now()}
	return c.save()
}

// save must be called with the mutex held.
func (c *Cache) save() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return err
	}
	if ferr := fileutil.WriteFileAtomic(c.path, data); ferr != nil {
		return ferr
	}
	return nil
}
