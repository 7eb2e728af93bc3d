package fetcher

import (
	"net/url"

	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

// BatchByHost groups urls into politeness batches. No batch contains two
// URLs of the same bare host and no batch exceeds batchSize. Construction is
// round-robin across hosts in first-seen order: batch i takes the i-th
// queued URL of each host, overflowing into the next batch when the size is
// reached or a host would repeat. Per-host spacing falls out of the number
// of hosts in play.
func BatchByHost(urls []string, batchSize int) [][]string {
	queues := make(map[string][]string)
	var hostOrder []string

	for _, raw := range urls {
		host := batchHost(raw)
		if _, ok := queues[host]; !ok {
			hostOrder = append(hostOrder, host)
		}
		queues[host] = append(queues[host], raw)
	}

	maxDepth := 0
	for _, queue := range queues {
		if len(queue) > maxDepth {
			maxDepth = len(queue)
		}
	}

	var batches [][]string
	var current []string
	hostsInBatch := make(map[string]struct{})

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			hostsInBatch = make(map[string]struct{})
		}
	}

	for depth := 0; depth < maxDepth; depth++ {
		for _, host := range hostOrder {
			queue := queues[host]
			if depth >= len(queue) {
				continue
			}
			if _, dup := hostsInBatch[host]; dup || len(current) >= batchSize {
				flush()
			}
			current = append(current, queue[depth])
			hostsInBatch[host] = struct{}{}
		}
	}
	flush()

	return batches
}

// batchHost returns the politeness grouping key for a raw URL. URLs that do
// not parse group under their raw string; they surface as transport errors
// at fetch time.
func batchHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return urlutil.BareHost(u.Host)
}
