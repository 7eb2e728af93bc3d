package urlutil

import (
	"net/url"
	"strings"
)

// Normalize applies a deterministic normalization to a URL, producing the
// canonical form used for frontier and history equality.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Trailing slashes are removed from the path (except for root "/")
//   - Fragments are removed
//   - Query parameters are kept ("?page=2" is a distinct document)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Normalize(Normalize(url)) == Normalize(url)
func Normalize(sourceURL url.URL) url.URL {
	canonical := sourceURL

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
		canonical.RawPath = ""
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	return canonical
}

// NormalizeString parses, normalizes and re-serializes a raw URL string.
func NormalizeString(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	normalized := Normalize(*u)
	return normalized.String(), nil
}

// BareHost strips a leading "www." from the URL's host.
// Politeness grouping treats www and bare domains as the same server.
func BareHost(host string) string {
	host = lowerASCII(host)
	return strings.TrimPrefix(host, "www.")
}

// Origin returns the scheme://host[:port] prefix of a URL.
// This is the robots.txt cache key.
func Origin(u url.URL) string {
	return lowerASCII(u.Scheme) + "://" + lowerASCII(u.Host)
}

// SameHost reports whether two URLs live on the same host, ignoring a
// leading "www." on either side.
func SameHost(a, b url.URL) bool {
	return BareHost(a.Host) == BareHost(b.Host)
}

// lowerASCII converts ASCII characters to lowercase. It allocates only when
// s contains an uppercase ASCII letter; otherwise s is returned as is.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
