package records

import (
	"encoding/json"
	"fmt"

	"github.com/crawlzilla/crawlzilla/internal/langid"
)

// Body keys in the flat raw-record JSON, one per parser kind.
const KindHTML = "html"

// Outcome tags the three shapes a fetch result can take.
type Outcome int

const (
	// OutcomeSuccess: 2xx with an acceptable Content-Type; headers and body present.
	OutcomeSuccess Outcome = iota
	// OutcomeHTTPNoBody: a response arrived but the body was not retained
	// (non-2xx, or 2xx with an unacceptable Content-Type).
	OutcomeHTTPNoBody
	// OutcomeTransportError: no HTTP response (DNS, TCP, TLS, timeout, decode).
	OutcomeTransportError
)

// RawRecord is one HTTP fetch outcome. On the wire it is a single flat JSON
// object: {url, status, headers?, <kind>?, error?} for compatibility with
// the dump format downstream tooling reads.
type RawRecord struct {
	URL      string
	Status   int
	Headers  map[string]string
	BodyKind string
	Body     string
	Err      string
}

func NewSuccessRecord(url string, status int, headers map[string]string, kind, body string) RawRecord {
	return RawRecord{URL: url, Status: status, Headers: headers, BodyKind: kind, Body: body}
}

func NewNoBodyRecord(url string, status int, headers map[string]string) RawRecord {
	return RawRecord{URL: url, Status: status, Headers: headers}
}

func NewTransportErrorRecord(url string, err string) RawRecord {
	return RawRecord{URL: url, Status: -1, Err: err}
}

func (r RawRecord) Outcome() Outcome {
	switch {
	case r.Status == -1:
		return OutcomeTransportError
	case r.BodyKind != "":
		return OutcomeSuccess
	default:
		return OutcomeHTTPNoBody
	}
}

// HasBody reports whether a body of the given kind was retained.
func (r RawRecord) HasBody(kind string) bool {
	return r.BodyKind == kind && r.Body != ""
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	obj := map[string]any{
		"url":    r.URL,
		"status": r.Status,
	}
	if r.Headers != nil {
		obj["headers"] = r.Headers
	}
	if r.BodyKind != "" {
		obj[r.BodyKind] = r.Body
	}
	if r.Err != "" {
		obj["error"] = r.Err
	}
	return json.Marshal(obj)
}

func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = RawRecord{}
	for key, raw := range fields {
		switch key {
		case "url":
			if err := json.Unmarshal(raw, &r.URL); err != nil {
				return err
			}
		case "status":
			if err := json.Unmarshal(raw, &r.Status); err != nil {
				return err
			}
		case "headers":
			if err := json.Unmarshal(raw, &r.Headers); err != nil {
				return err
			}
		case "error":
			if err := json.Unmarshal(raw, &r.Err); err != nil {
				return err
			}
		default:
			// any other key carries the body for its parser kind
			if r.BodyKind != "" {
				return fmt.Errorf("raw record has two body keys: %q and %q", r.BodyKind, key)
			}
			if err := json.Unmarshal(raw, &r.Body); err != nil {
				return err
			}
			r.BodyKind = key
		}
	}
	return nil
}

// Segment is an accepted post-cleaning paragraph with its language tag.
type Segment struct {
	Text     string     `json:"text"`
	Language langid.Tag `json:"language"`
}

// ParsedDocument is the parse result for one fetched URL. URL is the URL
// submitted to the fetcher, never a redirect target.
type ParsedDocument struct {
	URL        string    `json:"url"`
	Segments   []Segment `json:"segments"`
	ParsedURLs []string  `json:"parsed_urls"`
}
