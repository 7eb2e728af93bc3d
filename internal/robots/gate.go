package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"

	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

/*
 Robots gate

 Decides MayFetch(url, userAgent) for arbitrary URLs before any page fetch,
 backed by the on-disk cache. Failure policy is polite fail-open: when no
 robots.txt could be authoritatively retrieved the fetch is permitted and the
 reason logged at debug. Robots trouble never aborts a crawl.
*/

const robotsPath = "/robots.txt"

type Gate struct {
	cache       *Cache
	httpClient  *http.Client
	warmWorkers int
	log         zerolog.Logger
}

func NewGate(cacheFile string, ttl, timeout time.Duration, warmWorkers int, log zerolog.Logger) *Gate {
	if warmWorkers <= 0 {
		warmWorkers = 5
	}
	return &Gate{
		cache:       NewCache(cacheFile, ttl),
		httpClient:  &http.Client{Timeout: timeout},
		warmWorkers: warmWorkers,
		log:         log,
	}
}

// MayFetch reports whether userAgent is allowed to fetch u. The decision is
// a pure cache lookup when the origin was warmed; a cold origin is fetched
// inline first.
func (g *Gate) MayFetch(ctx context.Context, u url.URL, userAgent string) bool {
	entry := g.entry(ctx, urlutil.Origin(u))
	if entry.Body == nil {
		return true
	}

	data, err := robotstxt.FromString(*entry.Body)
	if err != nil {
		g.log.Debug().Str("origin", urlutil.Origin(u)).Err(err).
			Msg("robots.txt did not parse, failing open")
		return true
	}

	return data.FindGroup(userAgent).Test(requestPath(u))
}

// CrawlDelay returns the Crawl-delay of the group matching userAgent at u's
// origin, or zero when none applies.
func (g *Gate) CrawlDelay(ctx context.Context, u url.URL, userAgent string) time.Duration {
	entry := g.entry(ctx, urlutil.Origin(u))
	if entry.Body == nil {
		return 0
	}
	data, err := robotstxt.FromString(*entry.Body)
	if err != nil {
		return 0
	}
	return data.FindGroup(userAgent).CrawlDelay
}

// Warm deduplicates the origins of urls and fetches the missing or expired
// robots.txt entries on a bounded worker pool. After warming, MayFetch is an
// in-memory lookup for every given URL.
func (g *Gate) Warm(ctx context.Context, urls []url.URL) {
	origins := make(map[string]struct{})
	for _, u := range urls {
		origins[urlutil.Origin(u)] = struct{}{}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(g.warmWorkers)
	for origin := range origins {
		if _, ok := g.cache.Get(origin); ok {
			continue
		}
		origin := origin
		group.Go(func() error {
			g.fetchAndStore(ctx, origin)
			return nil
		})
	}
	group.Wait()
}

// entry returns the cached entry for origin, fetching it first on a miss.
func (g *Gate) entry(ctx context.Context, origin string) Entry {
	if entry, ok := g.cache.Get(origin); ok {
		return entry
	}
	return g.fetchAndStore(ctx, origin)
}

func (g *Gate) fetchAndStore(ctx context.Context, origin string) Entry {
	body := g.fetchRobots(ctx, origin)
	if err := g.cache.Put(origin, body); err != nil {
		g.log.Debug().Str("origin", origin).Err(err).Msg("cannot persist robots cache")
	}
	return Entry{Body: body}
}

// fetchRobots retrieves origin's robots.txt. The body is accepted only on
// status 200 with a text/plain Content-Type; anything else, transport errors
// included, yields nil.
func (g *Gate) fetchRobots(ctx context.Context, origin string) *string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+robotsPath, nil)
	if err != nil {
		g.log.Debug().Str("origin", origin).Err(err).Msg("cannot build robots.txt request")
		return nil
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Debug().Str("origin", origin).Err(err).Msg("cannot fetch robots.txt")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Debug().Str("origin", origin).Int("status", resp.StatusCode).
			Msg("no robots.txt at origin")
		return nil
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "text/plain") {
		g.log.Debug().Str("origin", origin).Str("content_type", contentType).
			Msg("robots.txt has wrong content type, treating as absent")
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		g.log.Debug().Str("origin", origin).Err(err).Msg("cannot read robots.txt body")
		return nil
	}

	body := string(data)
	return &body
}

func requestPath(u url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
