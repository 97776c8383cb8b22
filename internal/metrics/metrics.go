// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detailFetchesTotal   *prometheus.CounterVec
	imageDownloadsTotal  *prometheus.CounterVec
	fetchBytesTotal      *prometheus.CounterVec
	poolInFlight         *prometheus.GaugeVec
	poolInFlightPeak     *prometheus.GaugeVec
	linksDiscovered      prometheus.Gauge
	productsPersisted    prometheus.Gauge
	runDurationSeconds   prometheus.Gauge
	fetchDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every Observe helper
// calls it, so explicit initialization is optional.
func Init() {
	once.Do(func() {
		detailFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_detail_fetches_total",
				Help: "Product page fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		imageDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_image_downloads_total",
				Help: "Image acquisitions, labeled by outcome (downloaded, skipped or a failure kind).",
			},
			[]string{"outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_bytes_total",
				Help: "Bytes fetched, labeled by resource kind.",
			},
			[]string{"kind"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_fetch_duration_seconds",
				Help:    "Histogram of successful fetch latencies, labeled by resource kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		)

		poolInFlight = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_pool_in_flight",
				Help: "Units of work currently holding a slot, labeled by pool.",
			},
			[]string{"pool"},
		)

		poolInFlightPeak = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_pool_in_flight_peak",
				Help: "Highest concurrent slot usage observed, labeled by pool.",
			},
			[]string{"pool"},
		)

		linksDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_links_discovered",
			Help: "Candidate product links found on the catalog page in the last run.",
		})

		productsPersisted = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_products_persisted",
			Help: "Products written to the artifact in the last run.",
		})

		runDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_run_duration_seconds",
			Help: "Wall time of the last run.",
		})
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveDetail records one product page outcome.
func ObserveDetail(pageURL, outcome string, bytesFetched int, dur time.Duration) {
	Init()
	detailFetchesTotal.WithLabelValues(SanitizeSite(pageURL), outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues("detail").Add(float64(bytesFetched))
		fetchDurationSeconds.WithLabelValues("detail").Observe(dur.Seconds())
	}
}

// ObserveImage records one image outcome.
func ObserveImage(outcome string, bytesFetched int, dur time.Duration) {
	Init()
	imageDownloadsTotal.WithLabelValues(outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues("image").Add(float64(bytesFetched))
		fetchDurationSeconds.WithLabelValues("image").Observe(dur.Seconds())
	}
}

// ObserveCatalog records the catalog page fetch and the number of links it yielded.
func ObserveCatalog(bytesFetched, links int, dur time.Duration) {
	Init()
	fetchBytesTotal.WithLabelValues("catalog").Add(float64(bytesFetched))
	fetchDurationSeconds.WithLabelValues("catalog").Observe(dur.Seconds())
	linksDiscovered.Set(float64(links))
}

// ObserveRun records the outcome of a finished run.
func ObserveRun(persisted int, dur time.Duration) {
	Init()
	productsPersisted.Set(float64(persisted))
	runDurationSeconds.Set(dur.Seconds())
}

// SetInFlight publishes the current slot usage of a pool.
func SetInFlight(pool string, n int64) {
	Init()
	poolInFlight.WithLabelValues(pool).Set(float64(n))
}

// SetInFlightPeak publishes the highest slot usage seen by a pool.
func SetInFlightPeak(pool string, n int64) {
	Init()
	poolInFlightPeak.WithLabelValues(pool).Set(float64(n))
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for pickup by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
