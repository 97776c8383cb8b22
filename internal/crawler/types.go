// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Product is the record persisted to the output artifact. Title, Price and
// Description are nil when the page did not carry the element.
type Product struct {
	ID           string   `json:"id"`
	Title        *string  `json:"title"`
	Price        *string  `json:"price"`
	Description  *string  `json:"description"`
	Images       []string `json:"images"`
	ImageFiles   []string `json:"image_files"`
	ImagesFolder string   `json:"images_folder"`
	URL          string   `json:"url"`
}

// HasTitle reports whether the product carries a non-empty title.
func (p Product) HasTitle() bool {
	return p.Title != nil && *p.Title != ""
}

// TitleText returns the title or an empty string.
func (p Product) TitleText() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// DetailResult is the outcome of fetching one product page. Exactly one of
// Product and Failure is set.
type DetailResult struct {
	URL     string
	Product *Product
	Failure *Failure
}

// ImageStatus describes how an image ended up on disk.
type ImageStatus string

// Image outcomes tracked by the acquirer.
const (
	ImageDownloaded ImageStatus = "downloaded"
	ImageSkipped    ImageStatus = "skipped"
	ImageFailed     ImageStatus = "failed"
)

// ImageResult is the outcome of acquiring one image. Path is the target
// relative to the image root; it holds a file only when Failure is nil.
type ImageResult struct {
	URL     string
	Path    string
	Status  ImageStatus
	Bytes   int
	Failure *Failure
}
