// Package naming turns free text and URLs into filesystem-safe names and
// hands out collision-free product folders.
package naming

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// DefaultFolder is the folder name used when neither title nor URL yields one.
const DefaultFolder = "product"

var (
	slugInvalidChars     = regexp.MustCompile(`[^\p{L}\p{N}_\- ]+`)
	slugSpaces           = regexp.MustCompile(`\s+`)
	filenameInvalidChars = regexp.MustCompile(`[^\p{L}\p{N}_.\-]+`)
)

// Slugify lower-cases text, drops everything but letters, digits, underscore,
// hyphen and space, and joins words with single hyphens. An empty result
// yields fallback.
func Slugify(text, fallback string) string {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	text = slugInvalidChars.ReplaceAllString(text, "")
	text = strings.Trim(slugSpaces.ReplaceAllString(text, "-"), "-")
	if text == "" {
		return fallback
	}
	return text
}

// FolderName derives the folder base-name for a product: the slugified title,
// then the slugified basename of the product URL path (extension removed),
// then DefaultFolder.
func FolderName(title, productURL string) string {
	fallback := Slugify(urlStem(productURL), DefaultFolder)
	return Slugify(title, fallback)
}

// ImageFilename builds a filename from the basename of the image URL path,
// replacing characters that are unsafe in filenames. index is 1-based and
// only used for the image-<index>.jpg fallback.
func ImageFilename(imageURL string, index int) string {
	base := urlBasename(imageURL)
	if base == "" || base == "." || base == ".." {
		return fmt.Sprintf("image-%d.jpg", index)
	}
	base = filenameInvalidChars.ReplaceAllString(base, "-")
	if strings.Trim(base, ".") == "" {
		return fmt.Sprintf("image-%d.jpg", index)
	}
	return base
}

// DedupeFilename returns name, or name with -1, -2, … inserted before the
// extension when used already holds it. The chosen name is added to used.
func DedupeFilename(used map[string]struct{}, name string) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

// UniqueName returns name when taken reports false for it, otherwise the
// first of name-1, name-2, … that is free.
func UniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func urlBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.EscapedPath()
	return p[strings.LastIndex(p, "/")+1:]
}

func urlStem(raw string) string {
	base := urlBasename(raw)
	return strings.TrimSuffix(base, path.Ext(base))
}
