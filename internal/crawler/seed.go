package crawler

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crawlzilla/crawlzilla/internal/config"
	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

// LoadSeedURLs resolves the configured seed source into normalized URLs.
// A seed file may be gzip-compressed (.gz suffix), one URL per line.
// An unreadable seed file or an unparseable seed URL is a startup error.
func LoadSeedURLs(cfg config.Config) ([]string, error) {
	if cfg.SeedURL() != "" {
		normalized, err := urlutil.NormalizeString(cfg.SeedURL())
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL %q: %w", cfg.SeedURL(), err)
		}
		return []string{normalized}, nil
	}

	file, err := os.Open(cfg.SeedFile())
	if err != nil {
		return nil, fmt.Errorf("cannot read seed file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(cfg.SeedFile(), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("cannot read seed file: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var seeds []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		normalized, err := urlutil.NormalizeString(line)
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL %q: %w", line, err)
		}
		seeds = append(seeds, normalized)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read seed file: %w", err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("seed file %s contains no URLs", cfg.SeedFile())
	}
	return seeds, nil
}
