package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/crawlzilla/crawlzilla/internal/langid"
	"github.com/crawlzilla/crawlzilla/internal/records"
)

type Config struct {
	//===============
	//  Seeding
	//===============
	// File with one seed URL per line; may be gzip-compressed (.gz suffix).
	seedFile string
	// Single seed URL. Exactly one of seedFile / seedURL must be set.
	seedURL string

	//===============
	//  Corpus scope
	//===============
	// Target language tags; segments in other languages are dropped and
	// documents failing the language-mix gate are discarded entirely.
	languages []langid.Tag

	//===============
	// Rounds
	//===============
	// How many rounds to run; -1 means until the frontier drains.
	numRounds int
	// Maximum URLs selected from the frontier per round.
	roundSize int

	//===============
	// Download
	//===============
	// Maximum URLs per politeness batch.
	downloadBatchSize int
	// Concurrent download workers within a batch.
	downloadNThreads int
	// Per-request timeout.
	requestTimeout time.Duration
	// Fixed sleep after each request; the robots crawl-delay can lengthen it.
	downloadSleepTime time.Duration
	// User agent sent with every page request and matched against robots.txt
	// groups; robots.txt itself is fetched with the HTTP client's default agent.
	userAgent string
	// Content-Type prefix -> record body key. Responses whose declared type
	// matches no prefix are recorded without a body.
	acceptContentTypes map[string]string

	//===============
	// Robots
	//===============
	robotsTimeout     time.Duration
	robotsCacheTTL    time.Duration
	robotsWarmWorkers int

	//===============
	// Domain filter
	//===============
	// A domain is blacklisted once it has at least this many counted
	// segments and its target/off-target ratio falls below the ratio below.
	domainFilterMinSegments int
	domainFilterRatio       float64

	//===============
	// Output
	//===============
	outputFolder    string
	compressOutputs bool
	deleteHTML      bool
	deleteParsed    bool
	startFresh      bool
	logLevel        string
}

const (
	htmlFolder = "html"
	parsedDir  = "parsed"
	textDir    = "textual_outputs"
)

type Builder struct {
	cfg Config
}

// WithDefault starts a builder holding the documented defaults. Seed source
// and languages have no defaults; Build rejects a config without them.
func WithDefault() Builder {
	return Builder{cfg: Config{
		numRounds:               -1,
		roundSize:               1000,
		downloadBatchSize:       250,
		downloadNThreads:        10,
		requestTimeout:          12 * time.Second,
		downloadSleepTime:       100 * time.Millisecond,
		userAgent:               "Crawlzilla/1.0",
		acceptContentTypes:      map[string]string{"text/html": records.KindHTML},
		robotsTimeout:           10 * time.Second,
		robotsCacheTTL:          24 * time.Hour,
		robotsWarmWorkers:       5,
		domainFilterMinSegments: 10,
		domainFilterRatio:       0.2,
		outputFolder:            "./outputs",
		compressOutputs:         true,
		logLevel:                "info",
	}}
}

func (b Builder) WithSeedFile(path string) Builder {
	b.cfg.seedFile = path
	return b
}

func (b Builder) WithSeedURL(u string) Builder {
	b.cfg.seedURL = u
	return b
}

func (b Builder) WithLanguages(tags []langid.Tag) Builder {
	b.cfg.languages = tags
	return b
}

func (b Builder) WithNumRounds(n int) Builder {
	b.cfg.numRounds = n
	return b
}

func (b Builder) WithRoundSize(n int) Builder {
	b.cfg.roundSize = n
	return b
}

func (b Builder) WithDownloadBatchSize(n int) Builder {
	b.cfg.downloadBatchSize = n
	return b
}

func (b Builder) WithDownloadNThreads(n int) Builder {
	b.cfg.downloadNThreads = n
	return b
}

func (b Builder) WithRequestTimeout(d time.Duration) Builder {
	b.cfg.requestTimeout = d
	return b
}

func (b Builder) WithDownloadSleepTime(d time.Duration) Builder {
	b.cfg.downloadSleepTime = d
	return b
}

func (b Builder) WithUserAgent(ua string) Builder {
	b.cfg.userAgent = ua
	return b
}

func (b Builder) WithRobotsTimeout(d time.Duration) Builder {
	b.cfg.robotsTimeout = d
	return b
}

func (b Builder) WithRobotsCacheTTL(d time.Duration) Builder {
	b.cfg.robotsCacheTTL = d
	return b
}

func (b Builder) WithOutputFolder(dir string) Builder {
	b.cfg.outputFolder = dir
	return b
}

func (b Builder) WithCompressOutputs(compress bool) Builder {
	b.cfg.compressOutputs = compress
	return b
}

func (b Builder) WithDeleteHTML(del bool) Builder {
	b.cfg.deleteHTML = del
	return b
}

func (b Builder) WithDeleteParsed(del bool) Builder {
	b.cfg.deleteParsed = del
	return b
}

func (b Builder) WithStartFresh(fresh bool) Builder {
	b.cfg.startFresh = fresh
	return b
}

func (b Builder) WithLogLevel(level string) Builder {
	b.cfg.logLevel = level
	return b
}

func (b Builder) Build() (Config, error) {
	cfg := b.cfg

	if cfg.seedFile == "" && cfg.seedURL == "" {
		return Config{}, fmt.Errorf("%w: either a seed file or a seed URL is required", ErrInvalidConfig)
	}
	if cfg.seedFile != "" && cfg.seedURL != "" {
		return Config{}, fmt.Errorf("%w: seed file and seed URL are mutually exclusive", ErrInvalidConfig)
	}
	if len(cfg.languages) == 0 {
		return Config{}, fmt.Errorf("%w: at least one target language tag is required", ErrInvalidConfig)
	}
	if cfg.roundSize <= 0 {
		return Config{}, fmt.Errorf("%w: round size must be positive", ErrInvalidConfig)
	}
	if cfg.downloadBatchSize <= 0 {
		return Config{}, fmt.Errorf("%w: download batch size must be positive", ErrInvalidConfig)
	}
	if cfg.downloadNThreads <= 0 {
		return Config{}, fmt.Errorf("%w: download thread count must be positive", ErrInvalidConfig)
	}
	if cfg.logLevel != "info" && cfg.logLevel != "debug" {
		return Config{}, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, cfg.logLevel)
	}

	return cfg, nil
}

func (c Config) SeedFile() string { return c.seedFile }

func (c Config) SeedURL() string { return c.seedURL }

func (c Config) Languages() []langid.Tag { return c.languages }

func (c Config) NumRounds() int { return c.numRounds }

func (c Config) RoundSize() int { return c.roundSize }

func (c Config) DownloadBatchSize() int { return c.downloadBatchSize }

func (c Config) DownloadNThreads() int { return c.downloadNThreads }

func (c Config) RequestTimeout() time.Duration { return c.requestTimeout }

func (c Config) DownloadSleepTime() time.Duration { return c.downloadSleepTime }

func (c Config) UserAgent() string { return c.userAgent }

func (c Config) AcceptContentTypes() map[string]string { return c.acceptContentTypes }

func (c Config) RobotsTimeout() time.Duration { return c.robotsTimeout }

func (c Config) RobotsCacheTTL() time.Duration { return c.robotsCacheTTL }

func (c Config) RobotsWarmWorkers() int { return c.robotsWarmWorkers }

func (c Config) DomainFilterMinSegments() int { return c.domainFilterMinSegments }

func (c Config) DomainFilterRatio() float64 { return c.domainFilterRatio }

func (c Config) OutputFolder() string { return c.outputFolder }

func (c Config) CompressOutputs() bool { return c.compressOutputs }

func (c Config) DeleteHTML() bool { return c.deleteHTML }

func (c Config) DeleteParsed() bool { return c.deleteParsed }

func (c Config) StartFresh() bool { return c.startFresh }

func (c Config) LogLevel() string { return c.logLevel }

// Derived output locations.

func (c Config) HTMLDir() string {
	return filepath.Join(c.outputFolder, htmlFolder)
}

func (c Config) ParsedDir() string {
	return filepath.Join(c.outputFolder, parsedDir)
}

func (c Config) TextDir() string {
	return filepath.Join(c.outputFolder, textDir)
}

func (c Config) LogFile() string {
	return filepath.Join(c.outputFolder, "log.log")
}

func (c Config) RobotsCacheFile() string {
	return filepath.Join(c.outputFolder, "robots_cache.json")
}

func (c Config) DomainCounterFile() string {
	return filepath.Join(c.outputFolder, "domain_language_counter.json")
}

// IsTargetLanguage reports whether tag is in the configured target list.
func (c Config) IsTargetLanguage(tag langid.Tag) bool {
	for _, t := range c.languages {
		if t == tag {
			return true
		}
	}
	return false
}
