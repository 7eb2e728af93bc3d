package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/crawlzilla/crawlzilla/internal/build"
	"github.com/crawlzilla/crawlzilla/internal/config"
	"github.com/crawlzilla/crawlzilla/internal/crawler"
	"github.com/crawlzilla/crawlzilla/internal/fetcher"
	"github.com/crawlzilla/crawlzilla/internal/langid"
	"github.com/crawlzilla/crawlzilla/internal/parser"
	"github.com/crawlzilla/crawlzilla/internal/robots"
	"github.com/crawlzilla/crawlzilla/internal/urlstore"
	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
	"github.com/crawlzilla/crawlzilla/pkg/timeutil"
)

var (
	seedFile            string
	seedURL             string
	languages           string
	outputFolder        string
	numRounds           int
	roundSize           int
	downloadBatchSize   int
	downloadNThreads    int
	downloadSleepTime   time.Duration
	requestTimeout      time.Duration
	userAgent           string
	startFresh          bool
	dontCompressOutputs bool
	deleteHTML          bool
	deleteParsed        bool
	logLevel            string
)

var rootCmd = &cobra.Command{
	Use:   "crawlzilla",
	Short: "A focused crawler harvesting per-language text corpora.",
	Long: `crawlzilla crawls seed websites round by round, extracts clean
natural-language paragraphs, identifies their language and collects the text
of the configured target languages into per-round corpus shards.

Crawling is polite (robots.txt, per-host batching, request spacing) and
resumable: every round's artifacts are committed atomically and the frontier
and history survive restarts.`,
	Version:      build.FullVersion(),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		return runCrawl(cmd.Context(), cfg)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed-file", "", "file with one seed URL per line (may be .gz)")
	rootCmd.PersistentFlags().StringVar(&seedURL, "seed-url", "", "single seed URL to start from")
	rootCmd.PersistentFlags().StringVar(&languages, "language", "", "target language tags, comma separated (e.g. kin_Latn)")
	rootCmd.PersistentFlags().StringVar(&outputFolder, "output-folder", "./outputs", "where to store the output")
	rootCmd.PersistentFlags().IntVar(&numRounds, "num-rounds", -1, "how many rounds to run (-1: until the frontier is empty)")
	rootCmd.PersistentFlags().IntVar(&roundSize, "round-size", 1000, "how many URLs to download per round")
	rootCmd.PersistentFlags().IntVar(&downloadBatchSize, "download-batch-size", 250, "how many URLs per politeness batch")
	rootCmd.PersistentFlags().IntVar(&downloadNThreads, "download-n-threads", 10, "concurrent download workers per batch")
	rootCmd.PersistentFlags().DurationVar(&downloadSleepTime, "download-sleep-time", 100*time.Millisecond, "fixed sleep after each request")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "request-timeout", 12*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "Crawlzilla/1.0", "user agent for all requests")
	rootCmd.PersistentFlags().BoolVar(&startFresh, "start-fresh", false, "remove all previously crawled data and start fresh")
	rootCmd.PersistentFlags().BoolVar(&dontCompressOutputs, "dont-compress-outputs", false, "store raw and parsed JSONL uncompressed")
	rootCmd.PersistentFlags().BoolVar(&deleteHTML, "delete-html", false, "delete the raw HTML dump after each round")
	rootCmd.PersistentFlags().BoolVar(&deleteParsed, "delete-parsed", false, "delete the parsed file after each round")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: info or debug")
}

func buildConfig() (config.Config, error) {
	tags, err := langid.ParseTagList(languages)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: --language: %v", config.ErrInvalidConfig, err)
	}

	return config.WithDefault().
		WithSeedFile(seedFile).
		WithSeedURL(seedURL).
		WithLanguages(tags).
		WithOutputFolder(outputFolder).
		WithNumRounds(numRounds).
		WithRoundSize(roundSize).
		WithDownloadBatchSize(downloadBatchSize).
		WithDownloadNThreads(downloadNThreads).
		WithDownloadSleepTime(downloadSleepTime).
		WithRequestTimeout(requestTimeout).
		WithUserAgent(userAgent).
		WithStartFresh(startFresh).
		WithCompressOutputs(!dontCompressOutputs).
		WithDeleteHTML(deleteHTML).
		WithDeleteParsed(deleteParsed).
		WithLogLevel(logLevel).
		Build()
}

func runCrawl(ctx context.Context, cfg config.Config) error {
	if cfg.StartFresh() {
		if err := os.RemoveAll(cfg.OutputFolder()); err != nil {
			return fmt.Errorf("cannot remove output folder: %w", err)
		}
	}
	if err := fileutil.EnsureDir(cfg.OutputFolder()); err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info().Str("output_folder", cfg.OutputFolder()).
		Strs("languages", tagStrings(cfg.Languages())).
		Msg("start crawler")

	// fixed seed keeps the crawl order reproducible across runs
	rng := rand.New(rand.NewSource(0))

	frontier := urlstore.NewFrontier(cfg.OutputFolder())
	if frontier.FileExists() {
		if err := frontier.Load(); err != nil {
			return fmt.Errorf("cannot load frontier: %w", err)
		}
	} else {
		seeds, err := crawler.LoadSeedURLs(cfg)
		if err != nil {
			return err
		}
		rng.Shuffle(len(seeds), func(i, j int) {
			seeds[i], seeds[j] = seeds[j], seeds[i]
		})
		frontier.AddMany(seeds)
		if err := frontier.Persist(); err != nil {
			return err
		}
	}

	history := urlstore.NewHistory(cfg.OutputFolder())
	if err := history.Load(); err != nil {
		return fmt.Errorf("cannot load history: %w", err)
	}

	domains := crawler.NewDomainCounter(
		cfg.DomainCounterFile(),
		cfg.DomainFilterMinSegments(),
		cfg.DomainFilterRatio(),
		cfg.Languages(),
	)
	domains.Load()

	gate := robots.NewGate(
		cfg.RobotsCacheFile(),
		cfg.RobotsCacheTTL(),
		cfg.RobotsTimeout(),
		cfg.RobotsWarmWorkers(),
		log,
	)

	download := fetcher.NewFetcher(fetcher.Params{
		BatchSize:          cfg.DownloadBatchSize(),
		Workers:            cfg.DownloadNThreads(),
		RequestTimeout:     cfg.RequestTimeout(),
		SleepTime:          cfg.DownloadSleepTime(),
		UserAgent:          cfg.UserAgent(),
		AcceptContentTypes: cfg.AcceptContentTypes(),
	}, gate, timeutil.NewRealSleeper(), log)

	parse := parser.NewParser(cfg.Languages(), langid.Default(), log)

	return crawler.New(cfg, gate, download, parse, frontier, history, domains, rng, log).Run(ctx)
}

func newLogger(cfg config.Config) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if cfg.LogLevel() == "debug" {
		level = zerolog.DebugLevel
	}

	logFile, err := os.OpenFile(cfg.LogFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("cannot open log file: %w", err)
	}

	writer := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"},
		logFile,
	)
	log := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return log, func() { logFile.Close() }, nil
}

func tagStrings(tags []langid.Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}
