package langid

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

/*
 Language identification

 Thin wrapper over a pretrained trigram classifier. Input is a single cleaned
 paragraph; output is a language+script tag such as "kin_Latn" or "eng_Latn".
 No confidence threshold is applied here; the parser's language-mix gate
 works on the counts.
*/

// Tag is an ISO-639-3 language code joined to an ISO-15924 script code with
// an underscore, e.g. "kin_Latn".
type Tag string

func (t Tag) String() string {
	return string(t)
}

// ParseTag validates the xxx_Xxxx shape of a tag supplied on the CLI.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "_")
	if len(parts) != 2 || len(parts[0]) != 3 || len(parts[1]) != 4 {
		return "", fmt.Errorf("language tag %q is not of the form xxx_Xxxx (e.g. kin_Latn)", s)
	}
	for _, r := range parts[0] {
		if r < 'a' || r > 'z' {
			return "", fmt.Errorf("language tag %q: %q is not an ISO-639-3 code", s, parts[0])
		}
	}
	for i, r := range parts[1] {
		lower := r >= 'a' && r <= 'z'
		upper := r >= 'A' && r <= 'Z'
		if (i == 0 && !upper) || (i > 0 && !lower) || (!lower && !upper) {
			return "", fmt.Errorf("language tag %q: %q is not an ISO-15924 code", s, parts[1])
		}
	}
	return Tag(s), nil
}

// ParseTagList splits a comma-separated tag list and validates each entry.
func ParseTagList(s string) ([]Tag, error) {
	var tags []Tag
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag, err := ParseTag(part)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("no language tags given")
	}
	return tags, nil
}

// Identifier classifies a paragraph of text.
type Identifier interface {
	Classify(text string) Tag
}

// TrigramIdentifier classifies text with whatlanggo's trigram profiles.
// It is stateless and safe for concurrent use.
type TrigramIdentifier struct{}

func NewTrigramIdentifier() *TrigramIdentifier {
	return &TrigramIdentifier{}
}

var (
	defaultOnce sync.Once
	defaultID   *TrigramIdentifier
)

// Default returns the process-wide identifier. The classifier is constructed
// lazily, at most once per process.
func Default() Identifier {
	defaultOnce.Do(func() {
		defaultID = NewTrigramIdentifier()
	})
	return defaultID
}

func (i *TrigramIdentifier) Classify(text string) Tag {
	info := whatlanggo.Detect(text)

	code := whatlanggo.LangToString(info.Lang)
	if code == "" {
		code = "und"
	}
	return Tag(code + "_" + scriptCode(info.Script))
}

// scriptCode maps whatlanggo's script names to ISO-15924 codes. The library
// exposes unicode range tables and English names, not the four-letter codes.
var scriptCodes = map[string]string{
	"Arabic":     "Arab",
	"Bengali":    "Beng",
	"Cyrillic":   "Cyrl",
	"Devanagari": "Deva",
	"Ethiopic":   "Ethi",
	"Georgian":   "Geor",
	"Greek":      "Grek",
	"Gujarati":   "Gujr",
	"Gurmukhi":   "Guru",
	"Han":        "Hani",
	"Hangul":     "Hang",
	"Hebrew":     "Hebr",
	"Hiragana":   "Hira",
	"Kannada":    "Knda",
	"Katakana":   "Kana",
	"Khmer":      "Khmr",
	"Latin":      "Latn",
	"Malayalam":  "Mlym",
	"Myanmar":    "Mymr",
	"Oriya":      "Orya",
	"Sinhala":    "Sinh",
	"Tamil":      "Taml",
	"Telugu":     "Telu",
	"Thai":       "Thai",
}

func scriptCode(script *unicode.RangeTable) string {
	if script == nil {
		return "Zzzz"
	}
	if code, ok := scriptCodes[whatlanggo.Scripts[script]]; ok {
		return code
	}
	return "Zzzz"
}
