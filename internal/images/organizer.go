package images

import (
	"context"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/naming"
)

// FolderClaimer hands out unique product folders relative to the images root.
type FolderClaimer interface {
	Claim(name string) (string, error)
}

// Summary counts image outcomes across every organized product.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Organizer assigns each product a folder and downloads its images into it.
type Organizer struct {
	folders    FolderClaimer
	downloader *Downloader
	logger     *zap.Logger
}

// NewOrganizer constructs an Organizer.
func NewOrganizer(folders FolderClaimer, downloader *Downloader, logger *zap.Logger) *Organizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Organizer{folders: folders, downloader: downloader, logger: logger}
}

type plannedImage struct {
	url    string
	target string
}

type plan struct {
	product *crawler.Product
	images  []plannedImage
	results []crawler.ImageResult
}

// Organize fills ImagesFolder and ImageFiles on every product. Folders are
// claimed in slice order before any download starts, so colliding titles get
// the same suffixes on every run. Images are then fetched concurrently across
// all products, bounded by the downloader's pool. ImageFiles keeps the order
// of Images and lists only files present on disk.
func (o *Organizer) Organize(ctx context.Context, products []*crawler.Product) (Summary, error) {
	plans := make([]*plan, 0, len(products))
	for _, p := range products {
		plans = append(plans, o.planProduct(p))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pl := range plans {
		for i, img := range pl.images {
			g.Go(func() error {
				pl.results[i] = o.downloader.Download(gctx, img.url, img.target)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, pl := range plans {
		files := make([]string, 0, len(pl.results))
		for _, res := range pl.results {
			switch res.Status {
			case crawler.ImageDownloaded:
				sum.Downloaded++
			case crawler.ImageSkipped:
				sum.Skipped++
			default:
				sum.Failed++
				continue
			}
			files = append(files, res.Path)
		}
		pl.product.ImageFiles = files
		o.logger.Info("organized product images",
			zap.String("folder", pl.product.ImagesFolder),
			zap.Int("images", len(pl.images)),
			zap.Int("saved", len(files)),
		)
	}
	return sum, nil
}

// planProduct claims the product's folder and picks a target per image. A
// folder that cannot be created fails every image of that product only.
func (o *Organizer) planProduct(p *crawler.Product) *plan {
	pl := &plan{
		product: p,
		images:  make([]plannedImage, 0, len(p.Images)),
		results: make([]crawler.ImageResult, len(p.Images)),
	}
	folder, err := o.folders.Claim(naming.FolderName(p.TitleText(), p.URL))
	p.ImagesFolder = folder
	if err != nil {
		o.logger.Error("claim product folder failed",
			zap.String("url", p.URL),
			zap.String("folder", folder),
			zap.Error(err),
		)
		for i, imageURL := range p.Images {
			pl.results[i] = crawler.ImageResult{
				URL:     imageURL,
				Status:  crawler.ImageFailed,
				Failure: crawler.NewFailure(imageURL, err),
			}
		}
		return pl
	}

	used := make(map[string]struct{}, len(p.Images))
	for i, imageURL := range p.Images {
		name := naming.DedupeFilename(used, naming.ImageFilename(imageURL, i+1))
		pl.images = append(pl.images, plannedImage{url: imageURL, target: path.Join(folder, name)})
	}
	return pl
}
