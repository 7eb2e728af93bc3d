package fetcher_test

import (
	"net/url"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlzilla/crawlzilla/internal/fetcher"
	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

// twenty hosts, a hundred URLs, mirroring the politeness property the
// downloader must hold
var batchFixture = []string{
	"https://portalnews.news/page26", "https://mysite.net/page36", "https://demo.co/page36",
	"https://sample.io/page44", "https://webpage.biz/page10", "https://example.com/page20",
	"https://example.com/page39", "https://sample.io/page48", "https://mysite.net/page42",
	"https://randompage.info/page48", "https://www.testsite.org/page", "https://serviceapp.tech/page27",
	"https://mysite.net/page49", "https://serviceapp.tech/page40", "https://example.com/page49",
	"https://funzone.tv/page23", "https://www.musicworld.fm/page", "https://portalnews.news/page41",
	"https://portalnews.news/page33", "https://sportsarena.pro/page48", "https://serviceapp.tech/page47",
	"https://portalnews.news/page16", "https://datahub.ai/page3", "https://travelers.club/page40",
	"https://travelers.club/page2", "https://sportsarena.pro/page12", "https://mysite.net/page8",
	"https://serviceapp.tech/page3", "https://sportsarena.pro/page36", "https://example.com/page8",
	"https://cloudbase.app/page18", "https://example.com/page38", "https://webpage.biz/page4",
	"https://cloudbase.app/page36", "https://portalnews.news/page4", "https://sample.io/page50",
	"https://serviceapp.tech/page20", "https://example.com/page43", "https://sample.io/page6",
	"https://datahub.ai/page4", "https://cloudbase.app/page27", "https://coolstuff.dev/page40",
	"https://serviceapp.tech/page45", "https://cloudbase.app/page8", "https://mysite.net/page40",
	"https://coolstuff.dev/page22", "https://serviceapp.tech/page47", "https://www.myblog.me/page",
	"https://funzone.tv/page45", "https://sample.io/page8", "https://sample.io/page2",
	"https://webpage.biz/page35", "https://portalnews.news/page15", "https://portalnews.news/page50",
	"https://sportsarena.pro/page32", "https://example.com/page20", "https://travelers.club/page25",
	"https://portalnews.news/page28", "https://sample.io/page3", "https://travelers.club/page20",
	"https://travelers.club/page12", "https://demo.co/page21", "https://coolstuff.dev/page9",
	"https://coolstuff.dev/page39", "https://randompage.info/page25", "https://demo.co/page24",
	"https://sample.io/page18", "https://datahub.ai/page49", "https://travelers.club/page16",
	"https://demo.co/page12", "https://mysite.net/page7", "https://datahub.ai/page30",
	"https://mysite.net/page38", "https://portalnews.news/page49", "https://coolstuff.dev/page6",
	"https://example.com/page6", "https://sample.io/page23", "https://sportsarena.pro/page33",
	"https://www.eduplace.edu/page", "https://randompage.info/page25", "https://funzone.tv/page5",
	"https://portalnews.news/page16", "https://onlinestore.shop/page12", "https://cloudbase.app/page13",
	"https://funzone.tv/page12", "https://portalnews.news/page48", "https://travelers.club/page38",
	"https://mysite.net/page29", "https://travelers.club/page7", "https://serviceapp.tech/page32",
	"https://onlinestore.shop/page8", "https://onlinestore.shop/page50", "https://datahub.ai/page43",
	"https://portalnews.news/page31", "https://cloudbase.app/page4", "https://onlinestore.shop/page33",
	"https://demo.co/page17", "https://example.com/page26", "https://www.govsite.gov/page",
	"https://travelers.club/page42",
}

func TestBatchByHost_NoBatchRepeatsAHost(t *testing.T) {
	batches := fetcher.BatchByHost(batchFixture, 5)

	for _, batch := range batches {
		assert.LessOrEqual(t, len(batch), 5)

		hosts := make(map[string]struct{})
		for _, raw := range batch {
			u, err := url.Parse(raw)
			require.NoError(t, err)
			host := urlutil.BareHost(u.Host)
			_, dup := hosts[host]
			assert.False(t, dup, "host %s repeated in batch %v", host, batch)
			hosts[host] = struct{}{}
		}
	}
}

func TestBatchByHost_PreservesEveryURL(t *testing.T) {
	batches := fetcher.BatchByHost(batchFixture, 5)

	var flattened []string
	for _, batch := range batches {
		flattened = append(flattened, batch...)
	}
	require.Len(t, flattened, len(batchFixture))

	expected := append([]string{}, batchFixture...)
	sort.Strings(expected)
	sort.Strings(flattened)
	assert.Equal(t, expected, flattened)
}

func TestBatchByHost_PolitenessBeatsBatchSize(t *testing.T) {
	// two hosts, generous batch size: batches must still never repeat a host
	urls := []string{
		"https://a.com/1", "https://a.com/2", "https://a.com/3",
		"https://b.com/1", "https://b.com/2",
	}
	batches := fetcher.BatchByHost(urls, 10)

	for _, batch := range batches {
		hosts := make(map[string]struct{})
		for _, raw := range batch {
			u, err := url.Parse(raw)
			require.NoError(t, err)
			host := urlutil.BareHost(u.Host)
			_, dup := hosts[host]
			assert.False(t, dup)
			hosts[host] = struct{}{}
		}
	}
}

func TestBatchByHost_SingleHostYieldsSingletonBatches(t *testing.T) {
	urls := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
	batches := fetcher.BatchByHost(urls, 250)

	require.Len(t, batches, 3)
	assert.Equal(t, []string{"https://a.com/1"}, batches[0])
	assert.Equal(t, []string{"https://a.com/2"}, batches[1])
	assert.Equal(t, []string{"https://a.com/3"}, batches[2])
}
