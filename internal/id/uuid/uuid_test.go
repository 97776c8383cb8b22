// Package uuid includes tests for the deterministic ID generator.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	t.Parallel()

	gen := NewURLGenerator()
	tests := []struct {
		in   string
		want string
	}{
		{"https://X.com/p", "https://x.com/p"},
		{"https://x.com/p/", "https://x.com/p"},
		{"https://x.com/p?a=1", "https://x.com/p"},
		{"https://x.com/p#frag", "https://x.com/p"},
		{"https://x.com", "https://x.com/"},
		{"https://x.com/", "https://x.com/"},
		{"http://Shop.Example.COM/a/b//", "http://shop.example.com/a/b"},
		{"//x.com/p", "https://x.com/p"},
		{"https://x.com/café/", "https://x.com/café"},
		{"https://x.com/caf%C3%A9", "https://x.com/caf%C3%A9"},
		{"https://x.com/a%2Fb?q=1", "https://x.com/a%2Fb"},
		{"https://x.com:8443/p", "https://x.com:8443/p"},
		{"", "https:///"},
		{"%zz", "https:///"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, gen.Canonical(tt.in))
		})
	}
}

// TestNewIDEquivalentURLs ensures query, fragment, case and trailing slash
// never change the identifier.
func TestNewIDEquivalentURLs(t *testing.T) {
	t.Parallel()

	gen := NewURLGenerator()
	want := gen.NewID("https://X.com/p")
	for _, raw := range []string{
		"https://x.com/p?a=1",
		"https://x.com/p#frag",
		"https://x.com/p/",
		"https://x.com/p",
	} {
		assert.Equal(t, want, gen.NewID(raw), raw)
	}
	assert.NotEqual(t, want, gen.NewID("https://x.com/q"))
}

// TestNewIDMatchesUUIDv5 pins the identifier to the standard UUID v5 of the
// canonical URL so ids stay stable across machines and releases.
func TestNewIDMatchesUUIDv5(t *testing.T) {
	t.Parallel()

	gen := NewURLGenerator()
	id := gen.NewID("https://x.com/p/")
	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(5), parsed.Version())
	assert.Equal(t, goUUID.NewSHA1(goUUID.NameSpaceURL, []byte("https://x.com/p")).String(), id)
	assert.Equal(t, id, gen.NewID("https://x.com/p/"))
}

// TestNewIDKeepsRawNonASCIIPath pins ids of non-ASCII paths to the path text
// as it appears in the link.
func TestNewIDKeepsRawNonASCIIPath(t *testing.T) {
	t.Parallel()

	gen := NewURLGenerator()
	want := goUUID.NewSHA1(goUUID.NameSpaceURL, []byte("https://shop.test/p/café")).String()
	assert.Equal(t, want, gen.NewID("https://shop.test/p/café/?ref=home"))
	assert.NotEqual(t, want, gen.NewID("https://shop.test/p/caf%C3%A9"))
}
