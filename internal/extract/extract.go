// Package extract reads catalog and product pages with CSS selectors. It is
// the only place that knows about page markup; callers hand it HTML bytes and
// a base URL and get plain fields back.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors holds the element-selection rules for a storefront.
type Selectors struct {
	// ProductCard scopes link discovery to product-card containers.
	ProductCard string `mapstructure:"product_card"`
	// ProductLink matches anchors inside a product card.
	ProductLink string `mapstructure:"product_link"`
	Title       string `mapstructure:"title"`
	// Price matches the element whose text is the raw price; the first match wins.
	Price       string `mapstructure:"price"`
	Description string `mapstructure:"description"`
	// GalleryItem matches one gallery entry; GalleryLink is the anchor inside
	// it pointing at the full-resolution image.
	GalleryItem string `mapstructure:"gallery_item"`
	GalleryLink string `mapstructure:"gallery_link"`
}

// DefaultSelectors returns the WooCommerce rules the crawler ships with.
func DefaultSelectors() Selectors {
	return Selectors{
		ProductCard: "div.product-element-bottom",
		ProductLink: "a[href]",
		Title:       "h1.product_title",
		Price:       "p.price bdi",
		Description: "div#tab-description",
		GalleryItem: "figure.woocommerce-product-gallery__image",
		GalleryLink: "a[href]",
	}
}

// Fields are the values read from a product page. Nil pointers mean the
// element was not present.
type Fields struct {
	Title       *string
	Price       *string
	Description *string
	Images      []string
}

// Extractor applies Selectors to HTML documents.
type Extractor struct {
	sel Selectors
}

// New builds an Extractor.
func New(sel Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// Links returns every http(s) product link found inside product cards,
// resolved against base, in document order with duplicates removed.
func (e *Extractor) Links(body []byte, base *url.URL) ([]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0)
	seen := make(map[string]struct{})
	doc.Find(e.sel.ProductCard).Each(func(_ int, card *goquery.Selection) {
		card.Find(e.sel.ProductLink).Each(func(_ int, a *goquery.Selection) {
			abs, ok := resolveHTTP(base, a.AttrOr("href", ""))
			if !ok {
				return
			}
			if _, dup := seen[abs]; dup {
				return
			}
			seen[abs] = struct{}{}
			links = append(links, abs)
		})
	})
	return links, nil
}

// Product reads the product fields from a detail page. Gallery URLs are
// resolved against base and de-duplicated in first-seen order.
func (e *Extractor) Product(body []byte, base *url.URL) (Fields, error) {
	doc, err := parse(body)
	if err != nil {
		return Fields{}, err
	}

	var fields Fields
	if title := doc.Find(e.sel.Title).First(); title.Length() > 0 {
		if text := collapseSpace(title.Text()); text != "" {
			fields.Title = &text
		}
	}
	if price := doc.Find(e.sel.Price).First(); price.Length() > 0 {
		text := strings.TrimSpace(price.Text())
		fields.Price = &text
	}
	if desc := doc.Find(e.sel.Description).First(); desc.Length() > 0 {
		text := joinedText(desc)
		fields.Description = &text
	}

	fields.Images = make([]string, 0)
	seen := make(map[string]struct{})
	doc.Find(e.sel.GalleryItem).Each(func(_ int, item *goquery.Selection) {
		a := item.Find(e.sel.GalleryLink).First()
		abs, ok := resolveHTTP(base, a.AttrOr("href", ""))
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		fields.Images = append(fields.Images, abs)
	})
	return fields, nil
}

func parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func resolveHTTP(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// joinedText concatenates the trimmed text nodes under s with single spaces.
func joinedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if text := strings.TrimSpace(c.Text()); text != "" {
					parts = append(parts, text)
				}
			case "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return strings.Join(parts, " ")
}
