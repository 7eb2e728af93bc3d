package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/crawlzilla/crawlzilla/pkg/hashutil"
)

/*
 HTML -> text extraction

 Recall of readable sentences, not document structure. Candidate blocks are
 text-bearing elements (p, span, h1-h6); each filter in the line pipeline
 targets a specific junk pattern observed in the wild: navigation stubs,
 SHOUTED banners, ellipsis-truncated previews.
*/

var candidateTags = map[string]struct{}{
	"p": {}, "span": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

var consecutiveWhitespace = regexp.MustCompile(`\s+`)

const minLineLength = 50

// Extract walks the document tree depth-first and returns the clean
// paragraph lines in discovery order. Deterministic on fixed input.
func Extract(root *html.Node) []string {
	var paragraphs []string
	iterateNodes(root, func(node *html.Node) {
		paragraphs = append(paragraphs, cleanText(nodeText(node))...)
	})
	return paragraphs
}

// iterateNodes yields elements whose tag is a candidate and recurses into
// everything else. A yielded node is not descended into; its whole text
// content is one candidate block.
func iterateNodes(parent *html.Node, visit func(*html.Node)) {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			if _, ok := candidateTags[child.Data]; ok {
				visit(child)
				continue
			}
		}
		iterateNodes(child, visit)
	}
}

// nodeText concatenates all text descendants of node.
func nodeText(node *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(node)
	return b.String()
}

// cleanText splits a block on newlines and runs every line through the
// acceptance pipeline. Survivors are de-duplicated within the block,
// first occurrence wins.
func cleanText(text string) []string {
	var lines []string
	seen := make(map[[32]byte]struct{})

	for _, line := range strings.Split(text, "\n") {
		line, ok := acceptLine(line)
		if !ok {
			continue
		}

		key := hashutil.Key([]byte(line))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		lines = append(lines, line)
	}
	return lines
}

// acceptLine applies the acceptance pipeline in order and returns the
// cleaned line. Failing any step drops the line.
func acceptLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	runes := []rune(line)
	length := len(runes)

	// needs a minimum length
	if length < minLineLength {
		return "", false
	}

	// needs at least one sentence mark
	if !strings.ContainsAny(line, ".,!?") {
		return "", false
	}

	// case-ratio filters: mostly-lowercase navigation stubs and shouted banners
	var lower, upper int
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z':
			lower++
		case r >= 'A' && r <= 'Z':
			upper++
		}
	}
	if float64(lower)/float64(length) > 0.95 {
		return "", false
	}
	if float64(upper)/float64(length) > 0.20 {
		return "", false
	}

	// ellipsis-truncated previews
	if strings.HasSuffix(line, "...") {
		return "", false
	}

	return consecutiveWhitespace.ReplaceAllString(line, " "), true
}
