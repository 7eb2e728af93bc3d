package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/crawlzilla/crawlzilla/internal/records"
	"github.com/crawlzilla/crawlzilla/internal/robots"
	"github.com/crawlzilla/crawlzilla/pkg/failure"
	"github.com/crawlzilla/crawlzilla/pkg/timeutil"
)

/*
 Parallel polite downloader

 Fetch semantics:
 - batches run serially; workers within a batch run concurrently
 - only 2xx responses with an acceptable declared Content-Type keep a body
 - redirects are followed by the HTTP layer; the submitted URL stays the key
 - a failed fetch is recorded once, never retried
 - every outcome is written to the round's raw file batch by batch, each
   batch in the order its URLs were queued

 The fetcher never parses content; it only produces raw records.
*/

// Params carries the crawl-wide download settings.
type Params struct {
	BatchSize          int
	Workers            int
	RequestTimeout     time.Duration
	SleepTime          time.Duration
	UserAgent          string
	AcceptContentTypes map[string]string
}

type Fetcher struct {
	params     Params
	httpClient *http.Client
	gate       *robots.Gate
	sleeper    timeutil.Sleeper
	log        zerolog.Logger
}

func NewFetcher(params Params, gate *robots.Gate, sleeper timeutil.Sleeper, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		params:     params,
		httpClient: &http.Client{Timeout: params.RequestTimeout},
		gate:       gate,
		sleeper:    sleeper,
		log:        log,
	}
}

// NewFetcherWithClient injects a custom HTTP client. Useful for testing.
func NewFetcherWithClient(params Params, gate *robots.Gate, sleeper timeutil.Sleeper, httpClient *http.Client, log zerolog.Logger) *Fetcher {
	f := NewFetcher(params, gate, sleeper, log)
	f.httpClient = httpClient
	return f
}

// DownloadURLs fetches urls in politeness batches, writing one raw record
// per URL to writer in batch order (see BatchByHost). It returns the number
// of records that retained a body.
func (f *Fetcher) DownloadURLs(ctx context.Context, urls []string, writer *records.LineWriter) (int, failure.ClassifiedError) {
	start := time.Now()
	withBody := 0

	batches := BatchByHost(urls, f.params.BatchSize)
	for i, batch := range batches {
		f.log.Info().Int("batch", i+1).Int("batches", len(batches)).Int("size", len(batch)).
			Msg("download batch")

		results := make([]records.RawRecord, len(batch))
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(f.params.Workers)
		for j, target := range batch {
			j, target := j, target
			group.Go(func() error {
				results[j] = f.fetchOne(groupCtx, target)
				return nil
			})
		}
		_ = group.Wait()

		for _, record := range results {
			if err := writer.WriteJSONLine(record); err != nil {
				return withBody, err
			}
			if record.Outcome() == records.OutcomeSuccess {
				withBody++
			}
		}
	}

	f.log.Info().Int("with_body", withBody).Int("total", len(urls)).
		Dur("elapsed", time.Since(start)).Msg("download finished")
	return withBody, nil
}

// fetchOne performs a single GET and classifies the outcome as a raw record.
func (f *Fetcher) fetchOne(ctx context.Context, target string) records.RawRecord {
	defer f.politeSleep(ctx, target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return records.NewTransportErrorRecord(target, err.Error())
	}
	req.Header.Set("User-Agent", f.params.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return records.NewTransportErrorRecord(target, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return records.NewNoBodyRecord(target, resp.StatusCode, nil)
	}

	headers := lowercaseHeaders(resp.Header)
	contentType := headers["content-type"]
	kind, acceptable := f.acceptKind(contentType)
	if !acceptable {
		f.log.Debug().Str("url", target).Str("content_type", contentType).
			Msg("skipping body with unacceptable content type")
		return records.NewNoBodyRecord(target, resp.StatusCode, headers)
	}

	// decode to UTF-8: a BOM wins, then the declared charset, then a <meta>
	// charset in the first 1024 bytes of the body
	decoded, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return records.NewTransportErrorRecord(target, err.Error())
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return records.NewTransportErrorRecord(target, err.Error())
	}

	return records.NewSuccessRecord(target, resp.StatusCode, headers, kind, string(body))
}

// acceptKind matches the declared Content-Type against the configured
// acceptable prefixes and returns the record kind for the body.
func (f *Fetcher) acceptKind(contentType string) (string, bool) {
	for prefix, kind := range f.params.AcceptContentTypes {
		if strings.HasPrefix(contentType, prefix) {
			return kind, true
		}
	}
	return "", false
}

// politeSleep applies the fixed inter-request delay, lengthened to the
// origin's robots crawl-delay when one is declared.
func (f *Fetcher) politeSleep(ctx context.Context, target string) {
	delay := f.params.SleepTime
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		if crawlDelay := f.gate.CrawlDelay(ctx, *u, f.params.UserAgent); crawlDelay > delay {
			delay = crawlDelay
		}
	}
	f.sleeper.Sleep(delay)
}

func lowercaseHeaders(header http.Header) map[string]string {
	headers := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			headers[strings.ToLower(key)] = strings.ToLower(values[0])
		}
	}
	return headers
}
