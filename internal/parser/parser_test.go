package parser_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlzilla/crawlzilla/internal/langid"
	"github.com/crawlzilla/crawlzilla/internal/parser"
	"github.com/crawlzilla/crawlzilla/internal/records"
)

// stubIdentifier tags any paragraph containing the marker "zuzu" as French,
// everything else as Kinyarwanda.
type stubIdentifier struct{}

func (stubIdentifier) Classify(text string) langid.Tag {
	if strings.Contains(text, "zuzu") {
		return "fra_Latn"
	}
	return "kin_Latn"
}

func targetParagraph(i int) string {
	return fmt.Sprintf("Iyi nteruro ya %d igomba kuba ndende bihagije, kandi igira utwatuzo dukwiriye ngo yemerwe neza.", i)
}

func offTargetParagraph(i int) string {
	return fmt.Sprintf("Cette phrase zuzu portant le grand nombre %d est assez longue pour le filtre, avec des virgules.", i)
}

func pageHTML(paragraphs []string, anchors ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paragraphs {
		b.WriteString("<p>" + p + "</p>")
	}
	for _, a := range anchors {
		b.WriteString(`<a href="` + a + `">link</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestParser() *parser.Parser {
	return parser.NewParser([]langid.Tag{"kin_Latn"}, stubIdentifier{}, zerolog.Nop())
}

// writeRawFile lays down a raw round file with the given records and returns
// its path.
func writeRawFile(t *testing.T, dir string, rawRecords ...records.RawRecord) string {
	t.Helper()
	writer, err := records.NewLineWriter(dir, "00001.json", false)
	require.Nil(t, err)
	for _, record := range rawRecords {
		require.Nil(t, writer.WriteJSONLine(record))
	}
	require.Nil(t, writer.Finalize())
	return filepath.Join(dir, "00001.json")
}

func parseRound(t *testing.T, rawPath string) (parser.Summary, []records.ParsedDocument, string) {
	t.Helper()
	dir := t.TempDir()
	writer, err := records.NewLineWriter(dir, "00001.json", false)
	require.Nil(t, err)
	textDir := filepath.Join(dir, "textual_outputs")
	shards := records.NewShardSet(textDir, 1)

	summary, parseErr := newTestParser().ParseRoundFile(rawPath, writer, shards)
	require.Nil(t, parseErr)
	require.Nil(t, shards.Close())
	require.Nil(t, writer.Finalize())

	reader, openErr := records.OpenLines(filepath.Join(dir, "00001.json"))
	require.NoError(t, openErr)
	defer reader.Close()

	var docs []records.ParsedDocument
	for {
		line, ok := reader.Next()
		if !ok {
			break
		}
		var doc records.ParsedDocument
		require.NoError(t, json.Unmarshal([]byte(line), &doc))
		docs = append(docs, doc)
	}
	return summary, docs, textDir
}

func successRecord(url, body string) records.RawRecord {
	return records.NewSuccessRecord(url, 200,
		map[string]string{"content-type": "text/html"}, records.KindHTML, body)
}

func TestParse_MixGateKeepsMostlyTargetDocument(t *testing.T) {
	paragraphs := make([]string, 0, 11)
	for i := 0; i < 9; i++ {
		paragraphs = append(paragraphs, targetParagraph(i))
	}
	for i := 0; i < 2; i++ {
		paragraphs = append(paragraphs, offTargetParagraph(i))
	}
	rawPath := writeRawFile(t, t.TempDir(),
		successRecord("http://example.com/page", pageHTML(paragraphs, "/next.html")))

	summary, docs, textDir := parseRound(t, rawPath)

	assert.Equal(t, 1, summary.Documents)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "http://example.com/page", doc.URL)

	// only target segments are retained
	require.Len(t, doc.Segments, 9)
	for _, segment := range doc.Segments {
		assert.Equal(t, langid.Tag("kin_Latn"), segment.Language)
	}

	assert.Equal(t, []string{"http://example.com/next.html"}, doc.ParsedURLs)
	assert.Equal(t, []string{"http://example.com/next.html"}, summary.NewURLs)

	shard, err := os.ReadFile(filepath.Join(textDir, "00001_kin_Latn.txt"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimRight(string(shard), "\n"), "\n"), 9)

	// both languages counted for the domain filter
	assert.Equal(t, 9, summary.DomainLanguages["example.com"]["kin_Latn"])
	assert.Equal(t, 2, summary.DomainLanguages["example.com"]["fra_Latn"])
}

func TestParse_MixGateDiscardsMostlyOffTargetDocument(t *testing.T) {
	paragraphs := make([]string, 0, 10)
	for i := 0; i < 3; i++ {
		paragraphs = append(paragraphs, targetParagraph(i))
	}
	for i := 0; i < 7; i++ {
		paragraphs = append(paragraphs, offTargetParagraph(i))
	}
	rawPath := writeRawFile(t, t.TempDir(),
		successRecord("http://example.com/page", pageHTML(paragraphs, "/next.html")))

	summary, docs, _ := parseRound(t, rawPath)

	// document and its link expansion are both suppressed
	assert.Equal(t, 0, summary.Documents)
	assert.Empty(t, docs)
	assert.Empty(t, summary.NewURLs)

	// the off-target evidence still feeds the domain counter
	assert.Equal(t, 7, summary.DomainLanguages["example.com"]["fra_Latn"])
}

func TestParse_NoSegmentsStillExpandsLinks(t *testing.T) {
	rawPath := writeRawFile(t, t.TempDir(),
		successRecord("http://example.com/hub", pageHTML(nil, "/a.html", "/b.html")))

	summary, docs, _ := parseRound(t, rawPath)

	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Segments)
	assert.Equal(t, []string{"http://example.com/a.html", "http://example.com/b.html"}, docs[0].ParsedURLs)
	assert.Equal(t, 1, summary.Documents)
	assert.Len(t, summary.NewURLs, 2)
}

func TestParse_MetaNofollowSuppressesLinks(t *testing.T) {
	body := `<html><head><meta name="robots" content="nofollow"></head><body>` +
		"<p>" + targetParagraph(1) + "</p>" +
		`<a href="/hidden.html">x</a></body></html>`
	rawPath := writeRawFile(t, t.TempDir(), successRecord("http://example.com/page", body))

	summary, docs, _ := parseRound(t, rawPath)

	require.Len(t, docs, 1)
	assert.Len(t, docs[0].Segments, 1)
	assert.Empty(t, docs[0].ParsedURLs)
	assert.Empty(t, summary.NewURLs)
}

func TestParse_LinkExtractionRules(t *testing.T) {
	// absolute path, pure fragment, literal self reference, relative with a
	// fragment, non-http scheme, external host, trailing slash, duplicate
	body := pageHTML([]string{targetParagraph(1)},
		"/page1.html",
		"#frag",
		"./",
		"page2.html#section",
		"mailto:team@example.com",
		"https://other.com/x",
		"/page3/",
		"/page1.html",
	)
	rawPath := writeRawFile(t, t.TempDir(), successRecord("http://example.com/dir/index.html", body))

	_, docs, _ := parseRound(t, rawPath)

	require.Len(t, docs, 1)
	assert.Equal(t, []string{
		"http://example.com/page1.html",
		"http://example.com/dir/page2.html",
		"http://example.com/page3",
	}, docs[0].ParsedURLs)
}

func TestParse_BaseHrefWinsOverSourceURL(t *testing.T) {
	body := `<html><head><base href="http://example.com/other/"></head><body>` +
		"<p>" + targetParagraph(1) + "</p>" +
		`<a href="page.html">x</a></body></html>`
	rawPath := writeRawFile(t, t.TempDir(), successRecord("http://example.com/dir/index.html", body))

	_, docs, _ := parseRound(t, rawPath)

	require.Len(t, docs, 1)
	assert.Equal(t, []string{"http://example.com/other/page.html"}, docs[0].ParsedURLs)
}

func TestParse_WWWCountsAsSameHost(t *testing.T) {
	body := pageHTML([]string{targetParagraph(1)}, "http://www.example.com/about.html")
	rawPath := writeRawFile(t, t.TempDir(), successRecord("http://example.com/index.html", body))

	_, docs, _ := parseRound(t, rawPath)

	require.Len(t, docs, 1)
	assert.Equal(t, []string{"http://www.example.com/about.html"}, docs[0].ParsedURLs)
}

func TestParse_SkipsRecordsWithoutUsableBody(t *testing.T) {
	dir := t.TempDir()
	rawPath := writeRawFile(t, dir,
		records.NewNoBodyRecord("http://example.com/404", 404, nil),
		records.NewTransportErrorRecord("http://example.invalid/x", "timeout"),
		successRecord("http://example.com/good", pageHTML([]string{targetParagraph(1)})),
	)

	summary, docs, _ := parseRound(t, rawPath)

	assert.Equal(t, 1, summary.Documents)
	require.Len(t, docs, 1)
	assert.Equal(t, "http://example.com/good", docs[0].URL)
}

func TestParse_MalformedLineDoesNotStopTheRound(t *testing.T) {
	dir := t.TempDir()
	writer, err := records.NewLineWriter(dir, "00001.json", false)
	require.Nil(t, err)
	require.Nil(t, writer.WriteLine([]byte("{this is not json")))
	require.Nil(t, writer.WriteJSONLine(successRecord("http://example.com/good", pageHTML([]string{targetParagraph(1)}))))
	require.Nil(t, writer.Finalize())

	summary, docs, _ := parseRound(t, filepath.Join(dir, "00001.json"))

	assert.Equal(t, 1, summary.Documents)
	require.Len(t, docs, 1)
}

func TestParse_DocumentsKeepRecordOrder(t *testing.T) {
	dir := t.TempDir()
	var recs []records.RawRecord
	for i := 0; i < 5; i++ {
		recs = append(recs, successRecord(
			fmt.Sprintf("http://example.com/p%d", i),
			pageHTML([]string{targetParagraph(i)}),
		))
	}
	rawPath := writeRawFile(t, dir, recs...)

	_, docs, _ := parseRound(t, rawPath)

	require.Len(t, docs, 5)
	for i, doc := range docs {
		assert.Equal(t, fmt.Sprintf("http://example.com/p%d", i), doc.URL)
	}
}
