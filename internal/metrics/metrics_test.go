package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, detailFetchesTotal)
	require.NotNil(t, imageDownloadsTotal)
	require.NotNil(t, poolInFlight)
}

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(imageCounter("skipped"))
	ObserveImage("skipped", 0, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(imageCounter("skipped")))

	detailBefore := testutil.ToFloat64(detailFetchesTotal.WithLabelValues("metrics.test", "ok"))
	ObserveDetail("https://metrics.test/p", "ok", 10, time.Millisecond)
	assert.Equal(t, detailBefore+1, testutil.ToFloat64(detailFetchesTotal.WithLabelValues("metrics.test", "ok")))

	SetInFlight("metrics_test_pool", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(poolInFlight.WithLabelValues("metrics_test_pool")))

	ObserveRun(7, 2*time.Second)
	assert.Equal(t, float64(7), testutil.ToFloat64(productsPersisted))
}

func TestWriteTextfile(t *testing.T) {
	ObserveCatalog(100, 4, time.Millisecond)
	path := filepath.Join(t.TempDir(), "catalog.prom")
	require.NoError(t, WriteTextfile(path))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "catalog_links_discovered 4")
}

func imageCounter(outcome string) prometheus.Counter {
	Init()
	return imageDownloadsTotal.WithLabelValues(outcome)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
