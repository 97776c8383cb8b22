// Package uuid derives deterministic product identifiers.
package uuid

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Generator creates UUID v5 identifiers in the URL namespace. The zero value
// is ready to use.
type Generator struct{}

// NewURLGenerator creates a new Generator.
func NewURLGenerator() *Generator {
	return &Generator{}
}

// Canonical normalizes a product URL for identity: scheme (https when
// missing), lower-cased host and the path without a trailing slash. The path
// is taken verbatim from the input, neither escaped nor unescaped, so
// "/café" and "/caf%C3%A9" are different identities. Query and fragment are
// dropped. Unparseable input degrades to an empty host and "/".
func (Generator) Canonical(rawURL string) string {
	scheme, host, p := "https", "", ""
	if u, err := url.Parse(rawURL); err == nil {
		if u.Scheme != "" {
			scheme = u.Scheme
		}
		host = strings.ToLower(u.Host)
		p = rawPath(rawURL)
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		p = "/"
	}
	return scheme + "://" + host + p
}

// rawPath returns the path component of rawURL exactly as written.
func rawPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	rest, ok := "", false
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest, ok = rawURL[i+3:], true
	} else if strings.HasPrefix(rawURL, "//") {
		rest, ok = rawURL[2:], true
	}
	if !ok {
		return rawURL
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return ""
}

// NewID returns the UUID v5 string of the canonical form of rawURL.
func (g Generator) NewID(rawURL string) string {
	return g.NewRawID(rawURL).String()
}

// NewRawID returns the UUID v5 of the canonical form of rawURL.
func (g Generator) NewRawID(rawURL string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(g.Canonical(rawURL)))
}
