package pipeline

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Report summarizes one run.
type Report struct {
	Links            int
	Products         int
	DetailFailures   []crawler.Failure
	Untitled         []string
	ImagesDownloaded int
	ImagesSkipped    int
	ImageFailures    int
	ArtifactPath     string
	ArtifactDigest   string
	Duration         time.Duration
}

// FailuresByKind counts detail failures per failure kind.
func (r Report) FailuresByKind() map[crawler.FailureKind]int {
	out := make(map[crawler.FailureKind]int)
	for _, f := range r.DetailFailures {
		out[f.Kind]++
	}
	return out
}

// MarshalLogObject lets the report be logged as a single structured field.
func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("links", r.Links)
	enc.AddInt("products", r.Products)
	enc.AddInt("detail_failures", len(r.DetailFailures))
	enc.AddInt("untitled", len(r.Untitled))
	enc.AddInt("images_downloaded", r.ImagesDownloaded)
	enc.AddInt("images_skipped", r.ImagesSkipped)
	enc.AddInt("image_failures", r.ImageFailures)
	enc.AddString("artifact", r.ArtifactPath)
	if r.ArtifactDigest != "" {
		enc.AddString("artifact_sha256", r.ArtifactDigest)
	}
	enc.AddDuration("duration", r.Duration)
	return enc.AddObject("failures_by_kind", zapcore.ObjectMarshalerFunc(func(oe zapcore.ObjectEncoder) error {
		for kind, n := range r.FailuresByKind() {
			oe.AddInt(string(kind), n)
		}
		return nil
	}))
}

// Field wraps the report for zap.
func (r Report) Field() zap.Field {
	return zap.Object("report", r)
}
