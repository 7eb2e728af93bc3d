package crawler

import (
	"encoding/json"
	"os"

	"github.com/crawlzilla/crawlzilla/internal/langid"
	"github.com/crawlzilla/crawlzilla/pkg/failure"
	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
)

// DomainCounter tracks classified segment counts per domain and blacklists
// domains that keep serving off-target text. Once a domain has accumulated
// minSegments counted segments and its target/off-target count ratio is
// below ratio, its URLs are skipped at Select without fetching. State
// persists across restarts.
type DomainCounter struct {
	path        string
	minSegments int
	ratio       float64
	targets     []langid.Tag

	domains   map[string]map[langid.Tag]int
	blacklist map[string]struct{}
}

type domainCounterState struct {
	Blacklist []string                      `json:"blacklist"`
	Domains   map[string]map[langid.Tag]int `json:"domains"`
}

func NewDomainCounter(path string, minSegments int, ratio float64, targets []langid.Tag) *DomainCounter {
	return &DomainCounter{
		path:        path,
		minSegments: minSegments,
		ratio:       ratio,
		targets:     targets,
		domains:     make(map[string]map[langid.Tag]int),
		blacklist:   make(map[string]struct{}),
	}
}

// Load is best-effort; a missing or unreadable file starts an empty counter.
func (d *DomainCounter) Load() {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return
	}
	var state domainCounterState
	if err := json.Unmarshal(data, &state); err != nil {
		return
	}
	if state.Domains != nil {
		d.domains = state.Domains
	}
	for _, domain := range state.Blacklist {
		d.blacklist[domain] = struct{}{}
	}
}

// Add merges one round's per-domain language counts and re-evaluates the
// blacklist for every touched domain.
func (d *DomainCounter) Add(domainLanguages map[string]map[langid.Tag]int) {
	for domain, tagCounts := range domainLanguages {
		counts, ok := d.domains[domain]
		if !ok {
			counts = make(map[langid.Tag]int)
			d.domains[domain] = counts
		}
		for tag, n := range tagCounts {
			counts[tag] += n
		}
		d.evaluate(domain)
	}
}

func (d *DomainCounter) evaluate(domain string) {
	counts := d.domains[domain]

	var target, offTarget int
	for tag, n := range counts {
		if d.isTarget(tag) {
			target += n
		} else {
			offTarget += n
		}
	}
	if target+offTarget < d.minSegments {
		return
	}
	if offTarget > 0 && float64(target)/float64(offTarget) < d.ratio {
		d.blacklist[domain] = struct{}{}
	}
}

func (d *DomainCounter) isTarget(tag langid.Tag) bool {
	for _, t := range d.targets {
		if t == tag {
			return true
		}
	}
	return false
}

// IsBlacklisted takes a bare host.
func (d *DomainCounter) IsBlacklisted(domain string) bool {
	_, ok := d.blacklist[domain]
	return ok
}

func (d *DomainCounter) Persist() failure.ClassifiedError {
	state := domainCounterState{
		Blacklist: make([]string, 0, len(d.blacklist)),
		Domains:   d.domains,
	}
	for domain := range d.blacklist {
		state.Blacklist = append(state.Blacklist, domain)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return &fileutil.FileError{Message: err.Error(), Cause: fileutil.ErrCauseWriteError}
	}
	return fileutil.WriteFileAtomic(d.path, data)
}
