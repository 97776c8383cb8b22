// Package images downloads product images and lays them out on disk.
package images

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/dispatcher"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Store persists image bytes under the images root.
type Store interface {
	Exists(path string) (bool, error)
	PutObject(ctx context.Context, path string, data []byte) (string, error)
}

// Downloader fetches single images through the image pool.
type Downloader struct {
	pool         *dispatcher.Pool
	fetcher      crawler.Fetcher
	store        Store
	skipExisting bool
	logger       *zap.Logger
}

// NewDownloader constructs a Downloader. With skipExisting set, targets that
// already exist are reported as skipped without any network traffic.
func NewDownloader(
	pool *dispatcher.Pool,
	fetcher crawler.Fetcher,
	store Store,
	skipExisting bool,
	logger *zap.Logger,
) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		pool:         pool,
		fetcher:      fetcher,
		store:        store,
		skipExisting: skipExisting,
		logger:       logger,
	}
}

// Download stores imageURL at target, a slash-separated path relative to the
// images root. The file is only ever written whole.
func (d *Downloader) Download(ctx context.Context, imageURL, target string) crawler.ImageResult {
	target = path.Clean(target)
	if d.skipExisting {
		exists, err := d.store.Exists(target)
		if err != nil {
			return d.fail(imageURL, target, err)
		}
		if exists {
			metrics.ObserveImage(string(crawler.ImageSkipped), 0, 0)
			d.logger.Debug("image exists, skipping", zap.String("path", target))
			return crawler.ImageResult{URL: imageURL, Path: target, Status: crawler.ImageSkipped}
		}
	}

	var result crawler.ImageResult
	err := d.pool.Do(ctx, func(ctx context.Context) error {
		resp, err := d.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return err
		}
		if _, err := d.store.PutObject(ctx, target, resp.Body); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		metrics.ObserveImage(string(crawler.ImageDownloaded), len(resp.Body), resp.Duration)
		result = crawler.ImageResult{
			URL:    imageURL,
			Path:   target,
			Status: crawler.ImageDownloaded,
			Bytes:  len(resp.Body),
		}
		return nil
	})
	if err != nil {
		return d.fail(imageURL, target, err)
	}
	d.logger.Debug("image saved", zap.String("url", imageURL), zap.String("path", target))
	return result
}

func (d *Downloader) fail(imageURL, target string, err error) crawler.ImageResult {
	failure := crawler.NewFailure(imageURL, err)
	metrics.ObserveImage(string(failure.Kind), 0, 0)
	level := d.logger.Warn
	if errors.Is(err, context.Canceled) {
		level = d.logger.Debug
	}
	level("image download failed",
		zap.String("url", imageURL),
		zap.String("path", target),
		zap.String("kind", string(failure.Kind)),
		zap.Error(err),
	)
	return crawler.ImageResult{URL: imageURL, Path: target, Status: crawler.ImageFailed, Failure: failure}
}
