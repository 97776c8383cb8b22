// Package discovery finds candidate product links on the catalog page.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// LinkExtractor pulls product links out of a catalog page.
type LinkExtractor interface {
	Links(body []byte, base *url.URL) ([]string, error)
}

// Config controls link ordering.
type Config struct {
	// PreserveOrder keeps the catalog's display order instead of sorting
	// links lexicographically.
	PreserveOrder bool
}

// Discoverer fetches the catalog page once and returns its product links.
type Discoverer struct {
	cfg       Config
	fetcher   crawler.Fetcher
	extractor LinkExtractor
	logger    *zap.Logger
}

// New constructs a Discoverer.
func New(cfg Config, fetcher crawler.Fetcher, extractor LinkExtractor, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
	}
}

// Discover returns the de-duplicated absolute http(s) product links found on
// catalogURL. Any failure here is fatal for the run and is returned as-is.
func (d *Discoverer) Discover(ctx context.Context, catalogURL string) ([]string, error) {
	base, err := url.Parse(catalogURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	d.logger.Info("loading catalog", zap.String("url", catalogURL))

	resp, err := d.fetcher.Fetch(ctx, catalogURL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog %s: %w", catalogURL, err)
	}
	links, err := d.extractor.Links(resp.Body, base)
	if err != nil {
		return nil, &crawler.ParseError{URL: catalogURL, Err: err}
	}
	if !d.cfg.PreserveOrder {
		sort.Strings(links)
	}

	metrics.ObserveCatalog(len(resp.Body), len(links), resp.Duration)
	d.logger.Info("found candidate links", zap.Int("count", len(links)))
	return links, nil
}
