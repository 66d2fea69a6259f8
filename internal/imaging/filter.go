package imaging

import (
	"bytes"
	"context"
	"image"
	"log/slog"

	// Register decoders for the content image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/comicscan/internal/database"
	"github.com/nao1215/comicscan/internal/model"
)

// Content image gates. Panels from real comic articles are at least
// 200px on each side; wider-than-3:1 images are headers and separators.
const (
	// MinDimension is the minimum width and height in pixels.
	MinDimension = 200

	// MaxAspectRatio is the maximum width/height ratio.
	MaxAspectRatio = 3.0

	// DefaultDownloadConcurrency bounds parallel image downloads.
	DefaultDownloadConcurrency = 4
)

// ImageFetcher downloads one image. Implemented by fetcher.Client.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error)
}

// Filter downloads image candidates and retains probable content images:
// big enough, roughly page-shaped, and decodable. Download failures and
// undecodable payloads are skips, never errors.
type Filter struct {
	fetch       ImageFetcher
	cache       *database.DownloadCache
	minBytes    int
	concurrency int
	logger      *slog.Logger
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithMinBytes sets the minimum download size in bytes. Zero disables the
// size gate.
func WithMinBytes(n int) FilterOption {
	return func(f *Filter) {
		f.minBytes = n
	}
}

// WithDownloadConcurrency bounds parallel downloads.
func WithDownloadConcurrency(n int) FilterOption {
	return func(f *Filter) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithFilterLogger sets a custom logger.
func WithFilterLogger(logger *slog.Logger) FilterOption {
	return func(f *Filter) {
		f.logger = logger
	}
}

// NewFilter creates a content image filter. cache may be nil to disable
// download caching.
func NewFilter(fetch ImageFetcher, cache *database.DownloadCache, opts ...FilterOption) *Filter {
	f := &Filter{
		fetch:       fetch,
		cache:       cache,
		concurrency: DefaultDownloadConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Filter downloads and gates the candidates, returning the surviving
// content images in the candidates' original order. referer is the
// originating page URL sent with each download.
//
// Design decision: Downloads run concurrently under an errgroup limit for
// bounded fan-out, but each result lands in its
// candidate's slot and the slice is compacted afterwards, so the output
// order is discovery order regardless of completion order. The aggregation
// stage depends on that.
func (f *Filter) Filter(ctx context.Context, candidates []model.ImageCandidate, referer string) ([]model.ContentImage, error) {
	slots := make([]*model.ContentImage, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, cand := range candidates {
		g.Go(func() error {
			img, ok := f.examine(ctx, cand, referer)
			if ok {
				slots[i] = img
			}
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make([]model.ContentImage, 0, len(candidates))
	for _, s := range slots {
		if s != nil {
			images = append(images, *s)
		}
	}
	return images, nil
}

// examine downloads one candidate and applies the content gates.
// ok=false means the candidate is skipped.
func (f *Filter) examine(ctx context.Context, cand model.ImageCandidate, referer string) (*model.ContentImage, bool) {
	data, err := f.download(ctx, cand.URL, referer)
	if err != nil {
		f.logger.Debug("image download failed", "url", cand.URL, "error", err)
		return nil, false
	}

	if f.minBytes > 0 && len(data) < f.minBytes {
		f.logger.Debug("image below minimum size", "url", cand.URL, "bytes", len(data))
		return nil, false
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Undecodable payloads (SVG, HTML error pages) are skips.
		f.logger.Debug("image undecodable", "url", cand.URL, "error", err)
		return nil, false
	}

	if cfg.Width < MinDimension || cfg.Height < MinDimension {
		f.logger.Debug("image too small", "url", cand.URL, "width", cfg.Width, "height", cfg.Height)
		return nil, false
	}
	if cfg.Height > 0 && float64(cfg.Width)/float64(cfg.Height) > MaxAspectRatio {
		f.logger.Debug("image aspect ratio excluded", "url", cand.URL, "width", cfg.Width, "height", cfg.Height)
		return nil, false
	}

	return &model.ContentImage{
		ImageCandidate: cand,
		RawBytes:       data,
		Width:          cfg.Width,
		Height:         cfg.Height,
		ByteSize:       len(data),
	}, true
}

// download retrieves image bytes through the download cache.
func (f *Filter) download(ctx context.Context, imageURL, referer string) ([]byte, error) {
	if f.cache != nil {
		if body, ok, err := f.cache.Get(ctx, imageURL, referer); err == nil && ok {
			f.logger.Debug("download cache hit", "url", imageURL)
			return body, nil
		} else if err != nil {
			f.logger.Debug("download cache read failed", "url", imageURL, "error", err)
		}
	}

	body, err := f.fetch.FetchImage(ctx, imageURL, referer)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, imageURL, referer, body); err != nil {
			f.logger.Debug("download cache write failed", "url", imageURL, "error", err)
		}
	}

	return body, nil
}
