package crawler

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/crawlzilla/crawlzilla/internal/config"
	"github.com/crawlzilla/crawlzilla/internal/fetcher"
	"github.com/crawlzilla/crawlzilla/internal/parser"
	"github.com/crawlzilla/crawlzilla/internal/records"
	"github.com/crawlzilla/crawlzilla/internal/robots"
	"github.com/crawlzilla/crawlzilla/internal/urlstore"
	"github.com/crawlzilla/crawlzilla/pkg/failure"
	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

/*
 Round coordinator

 The crawler is the sole control-plane authority: it alone selects URLs,
 moves them between frontier and history, and renames round artifacts.
 Pipeline stages (gate, fetcher, parser) classify and record outcomes but
 never decide continuation.

 Invariants held at every round boundary:
 - a URL is never in both frontier and history
 - round artifacts become visible only via temp+rename
 - a fatal error aborts the round without renaming, so a rerun starts the
   same round number from scratch
*/

type Crawler struct {
	cfg      config.Config
	gate     *robots.Gate
	fetcher  *fetcher.Fetcher
	parser   *parser.Parser
	frontier *urlstore.Store
	history  *urlstore.Store
	domains  *DomainCounter
	rng      *rand.Rand
	log      zerolog.Logger
}

func New(
	cfg config.Config,
	gate *robots.Gate,
	fetcher *fetcher.Fetcher,
	parser *parser.Parser,
	frontier *urlstore.Store,
	history *urlstore.Store,
	domains *DomainCounter,
	rng *rand.Rand,
	log zerolog.Logger,
) *Crawler {
	return &Crawler{
		cfg:      cfg,
		gate:     gate,
		fetcher:  fetcher,
		parser:   parser,
		frontier: frontier,
		history:  history,
		domains:  domains,
		rng:      rng,
		log:      log,
	}
}

// Run drives rounds until the frontier drains or the configured round count
// is reached.
func (c *Crawler) Run(ctx context.Context) error {
	round := 1
	for c.frontier.Len() > 0 {
		if c.cfg.NumRounds() > 0 && round > c.cfg.NumRounds() {
			break
		}
		if err := c.Round(ctx, round); err != nil {
			return err
		}
		round++
	}
	c.log.Info().Int("rounds", round-1).Msg("crawling finished")
	return nil
}

// Round executes one Select/Download/Parse/Cleanup cycle.
func (c *Crawler) Round(ctx context.Context, num int) error {
	name := records.RoundFileName(num, c.cfg.CompressOutputs())
	rawPath := filepath.Join(c.cfg.HTMLDir(), name)
	parsedPath := filepath.Join(c.cfg.ParsedDir(), name)

	if fileExists(parsedPath) && fileExists(rawPath) {
		c.log.Info().Int("round", num).Msg("skip round")
		return nil
	}

	c.log.Info().Int("round", num).
		Int("frontier", c.frontier.Len()).
		Int("history", c.history.Len()).
		Msg("start round")

	if !fileExists(parsedPath) {
		if !fileExists(rawPath) {
			if err := c.download(ctx, rawPath, name); err != nil {
				return err
			}
		} else {
			// raw file survived an interrupted run; restore store state from it
			if err := c.reconcileRawFile(rawPath); err != nil {
				return err
			}
		}

		if err := c.parse(num, rawPath, name); err != nil {
			return err
		}
	}

	return c.cleanup(rawPath, parsedPath)
}

// download selects a budget of URLs, honors the robots gate, fetches the
// allowed set and commits the raw file plus both stores.
func (c *Crawler) download(ctx context.Context, rawPath, name string) error {
	selected, skipped := c.selectURLs(ctx)

	if err := fileutil.EnsureDir(c.cfg.HTMLDir()); err != nil {
		return err
	}
	writer, err := records.NewLineWriter(c.cfg.HTMLDir(), name, c.cfg.CompressOutputs())
	if err != nil {
		return err
	}

	withBody, err := c.fetcher.DownloadURLs(ctx, selected, writer)
	if err != nil {
		writer.Abandon()
		return err
	}
	if err := writer.Finalize(); err != nil {
		return err
	}

	attempted := append(append([]string{}, selected...), skipped...)
	c.moveToHistory(attempted)
	if err := c.persistStores(); err != nil {
		return err
	}

	c.log.Info().Int("selected", len(selected)).Int("skipped", len(skipped)).
		Int("with_body", withBody).Str("file", rawPath).Msg("download committed")
	return nil
}

// selectURLs scans the frontier in order and accepts up to round_size URLs
// that are not in history, not blank and not on a blacklisted domain. The
// robots gate is warmed for the whole set, then denied URLs are skipped.
// Skipped URLs count as attempted so they are never reselected.
func (c *Crawler) selectURLs(ctx context.Context) (selected, skipped []string) {
	var candidates []url.URL
	var candidateRaw []string

	for _, raw := range c.frontier.URLs() {
		if len(candidateRaw) >= c.cfg.RoundSize() {
			break
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if c.history.Contains(raw) {
			// already attempted; drain it from the frontier at the boundary
			skipped = append(skipped, raw)
			continue
		}

		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			c.log.Debug().Str("url", raw).Msg("dropping unparseable frontier url")
			skipped = append(skipped, raw)
			continue
		}
		if c.domains.IsBlacklisted(urlutil.BareHost(u.Host)) {
			c.log.Debug().Str("url", raw).Msg("skipping blacklisted domain")
			skipped = append(skipped, raw)
			continue
		}

		candidates = append(candidates, *u)
		candidateRaw = append(candidateRaw, raw)
	}

	c.gate.Warm(ctx, candidates)

	for i, u := range candidates {
		if c.gate.MayFetch(ctx, u, c.cfg.UserAgent()) {
			selected = append(selected, candidateRaw[i])
		} else {
			c.log.Debug().Str("url", candidateRaw[i]).Msg("robots disallow")
			skipped = append(skipped, candidateRaw[i])
		}
	}
	return selected, skipped
}

// parse streams the raw file into the parsed file and the per-language text
// shards, then folds the shuffled new URLs into the frontier.
func (c *Crawler) parse(num int, rawPath, name string) error {
	c.log.Info().Int("round", num).Msg("parsing round")

	if err := fileutil.EnsureDir(c.cfg.ParsedDir()); err != nil {
		return err
	}
	writer, err := records.NewLineWriter(c.cfg.ParsedDir(), name, c.cfg.CompressOutputs())
	if err != nil {
		return err
	}
	shards := records.NewShardSet(c.cfg.TextDir(), num)

	summary, parseErr := c.parser.ParseRoundFile(rawPath, writer, shards)
	if closeErr := shards.Close(); closeErr != nil && parseErr == nil {
		parseErr = closeErr
	}
	if parseErr != nil {
		writer.Abandon()
		return parseErr
	}
	if err := writer.Finalize(); err != nil {
		return err
	}

	c.domains.Add(summary.DomainLanguages)
	if err := c.domains.Persist(); err != nil {
		return err
	}

	// shuffle before merging so later rounds are not biased toward the link
	// structure of any single page
	fresh := c.mergeNewURLs(summary.NewURLs)
	if err := c.frontier.Persist(); err != nil {
		return err
	}

	c.log.Info().Int("documents", summary.Documents).
		Int("new_urls", fresh).Msg("parse committed")
	return nil
}

func (c *Crawler) mergeNewURLs(newURLs []string) int {
	shuffled := append([]string{}, newURLs...)
	c.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var fresh []string
	for _, u := range shuffled {
		if c.history.Contains(u) || c.frontier.Contains(u) {
			continue
		}
		fresh = append(fresh, u)
	}
	c.frontier.AddMany(fresh)
	return len(fresh)
}

func (c *Crawler) cleanup(rawPath, parsedPath string) error {
	if c.cfg.DeleteHTML() {
		if err := os.Remove(rawPath); err != nil && !os.IsNotExist(err) {
			c.log.Debug().Str("file", rawPath).Err(err).Msg("cannot delete raw file")
		}
	}
	if c.cfg.DeleteParsed() {
		if err := os.Remove(parsedPath); err != nil && !os.IsNotExist(err) {
			c.log.Debug().Str("file", parsedPath).Err(err).Msg("cannot delete parsed file")
		}
	}
	return nil
}

// reconcileRawFile restores store state after a crash that renamed the raw
// file but did not persist the stores: every URL recorded in the file is
// moved out of the frontier into history.
func (c *Crawler) reconcileRawFile(rawPath string) error {
	reader, err := records.OpenLines(rawPath)
	if err != nil {
		return &records.StorageError{Message: err.Error(), Cause: records.ErrCauseOpenFailure, Path: rawPath}
	}
	defer reader.Close()

	var attempted []string
	for {
		line, ok := reader.Next()
		if !ok {
			break
		}
		var record records.RawRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if record.URL != "" {
			attempted = append(attempted, record.URL)
		}
	}

	c.moveToHistory(attempted)
	return c.persistStores()
}

func (c *Crawler) moveToHistory(urls []string) {
	c.frontier.Remove(urls)
	var fresh []string
	for _, u := range urls {
		if !c.history.Contains(u) {
			fresh = append(fresh, u)
		}
	}
	c.history.AddMany(fresh)
}

func (c *Crawler) persistStores() failure.ClassifiedError {
	if err := c.frontier.Persist(); err != nil {
		return err
	}
	return c.history.Persist()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
