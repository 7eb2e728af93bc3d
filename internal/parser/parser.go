package parser

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/crawlzilla/crawlzilla/internal/extractor"
	"github.com/crawlzilla/crawlzilla/internal/langid"
	"github.com/crawlzilla/crawlzilla/internal/records"
	"github.com/crawlzilla/crawlzilla/internal/robots"
	"github.com/crawlzilla/crawlzilla/pkg/failure"
	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

/*
 Parser

 Consumes the round's raw records and emits:
 - parsed documents (segments tagged with language + internal link expansions)
 - per-language text shards

 The language-mix gate guards corpus purity at the document level: a page
 whose classified segments are less than 80% target-language is discarded
 whole, links included. A page with no extractable text still expands links.

 Records are streamed in groups; group members parse concurrently but all
 writes happen on the consuming goroutine in record order.
*/

// recordGroupSize is how many raw records parse concurrently per group.
const recordGroupSize = 100

// targetShare is the minimum fraction of segments that must carry a target
// language tag for a document to survive the mix gate.
const targetShare = 0.80

type Parser struct {
	languages  []langid.Tag
	identifier langid.Identifier
	log        zerolog.Logger
}

func NewParser(languages []langid.Tag, identifier langid.Identifier, log zerolog.Logger) *Parser {
	return &Parser{
		languages:  languages,
		identifier: identifier,
		log:        log,
	}
}

// Summary aggregates one round's parse results.
type Summary struct {
	// Documents that passed the gate and were written.
	Documents int
	// Unique internal URLs discovered this round, discovery order.
	NewURLs []string
	// Classified segment counts per domain, gate survivors and casualties
	// alike; feeds the domain language filter.
	DomainLanguages map[string]map[langid.Tag]int
}

// ParseRoundFile streams the raw record file at rawPath, writing parsed
// documents to parsedWriter and accepted segment texts to shards.
func (p *Parser) ParseRoundFile(rawPath string, parsedWriter *records.LineWriter, shards *records.ShardSet) (Summary, failure.ClassifiedError) {
	summary := Summary{
		DomainLanguages: make(map[string]map[langid.Tag]int),
	}

	reader, err := records.OpenLines(rawPath)
	if err != nil {
		return summary, &records.StorageError{
			Message: err.Error(),
			Cause:   records.ErrCauseOpenFailure,
			Path:    rawPath,
		}
	}
	defer reader.Close()

	seenURLs := make(map[string]struct{})

	for {
		batch, ok := reader.NextBatch(recordGroupSize)
		if !ok {
			break
		}

		outcomes := make([]parseOutcome, len(batch))
		group := new(errgroup.Group)
		for i, line := range batch {
			i, line := i, line
			group.Go(func() error {
				outcomes[i] = p.parseLine(line)
				return nil
			})
		}
		_ = group.Wait()

		for _, outcome := range outcomes {
			p.countDomainLanguages(summary.DomainLanguages, outcome)

			if outcome.doc == nil {
				continue
			}
			if err := parsedWriter.WriteJSONLine(outcome.doc); err != nil {
				return summary, err
			}
			summary.Documents++

			for _, segment := range outcome.doc.Segments {
				if err := shards.Append(segment.Language, segment.Text); err != nil {
					return summary, err
				}
			}
			for _, link := range outcome.doc.ParsedURLs {
				if _, dup := seenURLs[link]; dup {
					continue
				}
				seenURLs[link] = struct{}{}
				summary.NewURLs = append(summary.NewURLs, link)
			}
		}
	}

	if err := reader.Err(); err != nil {
		return summary, &records.StorageError{
			Message: err.Error(),
			Cause:   records.ErrCauseOpenFailure,
			Path:    rawPath,
		}
	}
	return summary, nil
}

type parseOutcome struct {
	// doc is nil when the record carried no usable body or failed the gate.
	doc       *records.ParsedDocument
	domain    string
	tagCounts map[langid.Tag]int
}

// parseLine handles one raw record. Malformed lines and malformed HTML are
// logged and skipped; a bad page never stops the round.
func (p *Parser) parseLine(line string) parseOutcome {
	var record records.RawRecord
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		p.log.Debug().Err(err).Msg("skipping undecodable raw record")
		return parseOutcome{}
	}

	if record.Outcome() != records.OutcomeSuccess || !record.HasBody(records.KindHTML) {
		return parseOutcome{}
	}

	sourceURL, err := url.Parse(record.URL)
	if err != nil {
		p.log.Debug().Str("url", record.URL).Err(err).Msg("skipping record with unparseable url")
		return parseOutcome{}
	}

	root, err := html.Parse(strings.NewReader(record.Body))
	if err != nil {
		p.log.Debug().Str("url", record.URL).Err(err).Msg("skipping malformed html")
		return parseOutcome{}
	}
	gqDoc := goquery.NewDocumentFromNode(root)

	segments := p.classify(extractor.Extract(root))

	outcome := parseOutcome{
		domain:    urlutil.BareHost(sourceURL.Host),
		tagCounts: countTags(segments),
	}

	if len(segments) > 0 && !p.passesMixGate(segments) {
		p.log.Debug().Str("url", record.URL).
			Msg("document discarded by language-mix gate")
		return outcome
	}

	doc := &records.ParsedDocument{
		URL:        record.URL,
		Segments:   p.retainTargets(segments),
		ParsedURLs: []string{},
	}

	meta := robots.ParseMetaRobots(record.Body)
	if !meta.CanIndex {
		p.log.Debug().Str("url", record.URL).Msg("meta robots noindex, keeping segments")
	}
	if meta.CanFollow {
		doc.ParsedURLs = extractLinks(gqDoc, *sourceURL)
	} else {
		p.log.Debug().Str("url", record.URL).Msg("meta robots nofollow, suppressing links")
	}

	outcome.doc = doc
	return outcome
}

func (p *Parser) classify(paragraphs []string) []records.Segment {
	segments := make([]records.Segment, 0, len(paragraphs))
	for _, text := range paragraphs {
		segments = append(segments, records.Segment{
			Text:     text,
			Language: p.identifier.Classify(text),
		})
	}
	return segments
}

// passesMixGate requires at least 80% of the classified segments to be in
// the target language set.
func (p *Parser) passesMixGate(segments []records.Segment) bool {
	target := 0
	for _, segment := range segments {
		if p.isTarget(segment.Language) {
			target++
		}
	}
	return float64(target)/float64(len(segments)) >= targetShare
}

func (p *Parser) retainTargets(segments []records.Segment) []records.Segment {
	retained := []records.Segment{}
	for _, segment := range segments {
		if p.isTarget(segment.Language) {
			retained = append(retained, segment)
		}
	}
	return retained
}

func (p *Parser) isTarget(tag langid.Tag) bool {
	for _, t := range p.languages {
		if t == tag {
			return true
		}
	}
	return false
}

func (p *Parser) countDomainLanguages(into map[string]map[langid.Tag]int, outcome parseOutcome) {
	if outcome.domain == "" || len(outcome.tagCounts) == 0 {
		return
	}
	counts, ok := into[outcome.domain]
	if !ok {
		counts = make(map[langid.Tag]int)
		into[outcome.domain] = counts
	}
	for tag, n := range outcome.tagCounts {
		counts[tag] += n
	}
}

func countTags(segments []records.Segment) map[langid.Tag]int {
	if len(segments) == 0 {
		return nil
	}
	counts := make(map[langid.Tag]int)
	for _, segment := range segments {
		counts[segment.Language]++
	}
	return counts
}
