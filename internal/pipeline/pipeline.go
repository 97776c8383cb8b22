// Package pipeline runs one end-to-end catalog ingestion: cleanup, link
// discovery, detail fetching, image organization and the JSON artifact.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/images"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
)

// LinkDiscoverer returns the product links found on a catalog page.
type LinkDiscoverer interface {
	Discover(ctx context.Context, catalogURL string) ([]string, error)
}

// DetailFetcher turns product links into per-link results, in link order.
type DetailFetcher interface {
	FetchAll(ctx context.Context, links []string) []crawler.DetailResult
}

// ImageOrganizer downloads product images and fills the image fields.
type ImageOrganizer interface {
	Organize(ctx context.Context, products []*crawler.Product) (images.Summary, error)
}

// ArtifactHasher digests the written artifact.
type ArtifactHasher interface {
	HashFile(path string) (string, error)
}

// Config controls where the run writes and what it removes first.
type Config struct {
	CatalogURL     string
	ArtifactPath   string
	ImagesDir      string
	CleanBeforeRun bool
	// MetricsTextfile, when set, receives a Prometheus text dump after the run.
	MetricsTextfile string
}

// Pipeline wires the stages of one run together.
type Pipeline struct {
	cfg       Config
	discovery LinkDiscoverer
	details   DetailFetcher
	organizer ImageOrganizer
	hasher    ArtifactHasher
	clock     crawler.Clock
	logger    *zap.Logger
}

// New constructs a Pipeline.
func New(
	cfg Config,
	discovery LinkDiscoverer,
	details DetailFetcher,
	organizer ImageOrganizer,
	hasher ArtifactHasher,
	clock crawler.Clock,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		discovery: discovery,
		details:   details,
		organizer: organizer,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes the pipeline. It fails only when the catalog cannot be read,
// the image root cannot be created or the artifact cannot be written; every
// per-product and per-image failure is reported in the returned Report.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := p.clock.Now()
	report := Report{ArtifactPath: p.cfg.ArtifactPath}

	if p.cfg.CleanBeforeRun {
		p.clean()
	}
	if err := os.MkdirAll(p.cfg.ImagesDir, 0o750); err != nil {
		return report, fmt.Errorf("create image root: %w", err)
	}

	links, err := p.discovery.Discover(ctx, p.cfg.CatalogURL)
	if err != nil {
		return report, err
	}
	report.Links = len(links)

	products := p.collect(p.details.FetchAll(ctx, links), &report)

	summary, err := p.organizer.Organize(ctx, products)
	if err != nil {
		return report, fmt.Errorf("organize images: %w", err)
	}
	report.ImagesDownloaded = summary.Downloaded
	report.ImagesSkipped = summary.Skipped
	report.ImageFailures = summary.Failed

	if err := p.writeArtifact(products); err != nil {
		return report, err
	}
	report.Products = len(products)
	if p.hasher != nil {
		digest, err := p.hasher.HashFile(p.cfg.ArtifactPath)
		if err != nil {
			p.logger.Warn("digest artifact failed", zap.Error(err))
		}
		report.ArtifactDigest = digest
	}

	report.Duration = p.clock.Since(start)
	metrics.ObserveRun(report.Products, report.Duration)
	if p.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(p.cfg.MetricsTextfile); err != nil {
			p.logger.Warn("write metrics textfile failed", zap.String("path", p.cfg.MetricsTextfile), zap.Error(err))
		}
	}
	return report, nil
}

// collect keeps titled products in link order and tallies the rest.
func (p *Pipeline) collect(results []crawler.DetailResult, report *Report) []*crawler.Product {
	products := make([]*crawler.Product, 0, len(results))
	for _, res := range results {
		switch {
		case res.Failure != nil:
			report.DetailFailures = append(report.DetailFailures, *res.Failure)
		case res.Product == nil || !res.Product.HasTitle():
			report.Untitled = append(report.Untitled, res.URL)
		default:
			products = append(products, res.Product)
		}
	}
	return products
}

// clean removes the previous artifact and image tree. Failures are only
// logged; the run continues with whatever is left.
func (p *Pipeline) clean() {
	if err := os.Remove(p.cfg.ArtifactPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("remove previous artifact failed", zap.String("path", p.cfg.ArtifactPath), zap.Error(err))
	}
	if err := os.RemoveAll(p.cfg.ImagesDir); err != nil {
		p.logger.Warn("remove previous image root failed", zap.String("path", p.cfg.ImagesDir), zap.Error(err))
	}
}

func (p *Pipeline) writeArtifact(products []*crawler.Product) error {
	data, err := EncodeProducts(products)
	if err != nil {
		return err
	}
	if err := local.WriteFileAtomic(p.cfg.ArtifactPath, data); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	p.logger.Info("wrote artifact",
		zap.String("path", p.cfg.ArtifactPath),
		zap.Int("products", len(products)),
	)
	return nil
}

// EncodeProducts renders products as an indented UTF-8 JSON array. Non-ASCII
// text and HTML characters are written as-is.
func EncodeProducts(products []*crawler.Product) ([]byte, error) {
	if products == nil {
		products = []*crawler.Product{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	return buf.Bytes(), nil
}
