// Package worker fetches product detail pages and turns them into records.
package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/dispatcher"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// FieldExtractor reads product fields from a detail page.
type FieldExtractor interface {
	Product(body []byte, base *url.URL) (extract.Fields, error)
}

// Worker fetches detail pages through a bounded pool.
type Worker struct {
	pool      *dispatcher.Pool
	fetcher   crawler.Fetcher
	extractor FieldExtractor
	ids       crawler.IdentityResolver
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	pool *dispatcher.Pool,
	fetcher crawler.Fetcher,
	extractor FieldExtractor,
	ids crawler.IdentityResolver,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		pool:      pool,
		fetcher:   fetcher,
		extractor: extractor,
		ids:       ids,
		logger:    logger,
	}
}

// FetchAll fetches every link concurrently and returns one result per link,
// in the same order as links. A failing link never affects its siblings.
func (w *Worker) FetchAll(ctx context.Context, links []string) []crawler.DetailResult {
	results := make([]crawler.DetailResult, len(links))
	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			results[i] = w.fetchInPool(ctx, link)
		}(i, link)
	}
	wg.Wait()
	return results
}

func (w *Worker) fetchInPool(ctx context.Context, link string) crawler.DetailResult {
	var result crawler.DetailResult
	err := w.pool.Do(ctx, func(ctx context.Context) error {
		result = w.Fetch(ctx, link)
		return nil
	})
	if err != nil {
		result = w.fail(link, err)
	}
	return result
}

// Fetch loads one detail page and builds its product record.
func (w *Worker) Fetch(ctx context.Context, link string) crawler.DetailResult {
	base, err := url.Parse(link)
	if err != nil {
		return w.fail(link, fmt.Errorf("parse link: %w", err))
	}

	resp, err := w.fetcher.Fetch(ctx, link)
	if err != nil {
		metrics.ObserveDetail(link, string(crawler.Classify(err)), 0, 0)
		return w.fail(link, err)
	}

	fields, err := w.extractor.Product(resp.Body, base)
	if err != nil {
		metrics.ObserveDetail(link, string(crawler.FailureParse), len(resp.Body), resp.Duration)
		return w.fail(link, &crawler.ParseError{URL: link, Err: err})
	}

	product := &crawler.Product{
		ID:          w.ids.NewID(link),
		Title:       fields.Title,
		Price:       fields.Price,
		Description: fields.Description,
		Images:      fields.Images,
		URL:         link,
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	metrics.ObserveDetail(link, "ok", len(resp.Body), resp.Duration)

	if product.HasTitle() {
		w.logger.Info("fetched product",
			zap.String("url", link),
			zap.String("title", product.TitleText()),
			zap.Int("images", len(product.Images)),
		)
	} else {
		w.logger.Warn("product page has no title", zap.String("url", link))
	}
	return crawler.DetailResult{URL: link, Product: product}
}

func (w *Worker) fail(link string, err error) crawler.DetailResult {
	failure := crawler.NewFailure(link, err)
	w.logger.Error("detail fetch failed",
		zap.String("url", link),
		zap.String("kind", string(failure.Kind)),
		zap.Error(err),
	)
	return crawler.DetailResult{URL: link, Failure: failure}
}
