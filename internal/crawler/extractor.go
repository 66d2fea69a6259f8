package crawler

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/comicscan/internal/model"
)

// defaultContentSelectors locate the main content region, most specific
// first. The generic id fallbacks come last so theme-specific containers
// win when present.
var defaultContentSelectors = []string{
	"article",
	".entry-content",
	".post-content",
	".article-content",
	".content",
	".single-content",
	".post-body",
	".article-body",
	"main",
	"#content",
	"#main",
	".post",
	".entry",
	".ystd",
	"#ystd",
}

// srcAttributes is the priority order for resolving an image source URL.
// Lazy-loading themes stash the real URL in data attributes while src holds
// a placeholder.
var srcAttributes = []string{
	"src",
	"data-src",
	"data-lazy-src",
	"data-original",
	"data-full-url",
}

// decorativeKeywords excludes assets that are part of the page chrome
// rather than the comic. Matched case-insensitively as substrings of the
// resolved URL.
var decorativeKeywords = []string{
	"icon",
	"logo",
	"avatar",
	"emoji",
	"button",
	"banner",
	"advertisement",
	"widget",
	"gravatar",
	"favicon",
	"sprite",
	"pixel",
	"tracking",
	"analytics",
	"1x1",
}

// imageExtensions are the recognized content image file extensions.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// uploadPathSegments mark URLs that are image uploads even without a
// recognizable extension (CDN rewriting often strips them).
var uploadPathSegments = []string{"/uploads/", "/images/"}

// Extractor scans a page's main content region for image candidates and
// applies the inclusion/exclusion heuristics.
type Extractor struct {
	selectors []string
	logger    *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithContentSelectors overrides the built-in content region selectors.
func WithContentSelectors(selectors []string) ExtractorOption {
	return func(e *Extractor) {
		if len(selectors) > 0 {
			e.selectors = selectors
		}
	}
}

// WithExtractorLogger sets a custom logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an image candidate extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		selectors: defaultContentSelectors,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract returns the image candidates of one page, deduplicated by
// resolved URL in first-seen order. Episode and page tags are left zero;
// the walker fills them in.
func (e *Extractor) Extract(page *Page) []model.ImageCandidate {
	region, selector := page.FindFirstMatching(e.selectors)
	if region != nil {
		// A page can carry several nodes matching a generic selector
		// (the story <article> plus related-article teasers); only the
		// first is the story body.
		region = region.First()
		e.logger.Debug("content region detected", "selector", selector)
	} else if body := page.Find("body"); body.Length() > 0 {
		region = body
		e.logger.Debug("content region fallback", "selector", "body")
	} else {
		region = page.Find("html")
	}

	candidates := make([]model.ImageCandidate, 0)
	seen := make(map[string]bool)

	region.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := resolveImageSource(img)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}

		resolved := page.ResolveURL(src)
		if resolved == "" || seen[resolved] {
			return
		}

		if reason := excludeImageURL(resolved); reason != "" {
			e.logger.Debug("image excluded", "url", resolved, "reason", reason)
			return
		}

		alt, _ := img.Attr("alt")
		candidates = append(candidates, model.ImageCandidate{
			URL:     resolved,
			AltText: alt,
		})
		seen[resolved] = true
	})

	return candidates
}

// resolveImageSource picks the image source URL from the priority-ordered
// attribute list, falling back to the first URL of a srcset.
func resolveImageSource(img *goquery.Selection) string {
	for _, attr := range srcAttributes {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	if srcset, ok := img.Attr("srcset"); ok {
		// srcset entries are "url descriptor, url descriptor"; take the
		// first URL.
		first := strings.TrimSpace(strings.Split(srcset, ",")[0])
		if fields := strings.Fields(first); len(fields) > 0 {
			return fields[0]
		}
	}

	return ""
}

// excludeImageURL returns a non-empty reason when the URL should be
// discarded: a decorative-asset keyword match, or neither a recognized
// image extension nor a known upload path segment.
func excludeImageURL(resolved string) string {
	lower := strings.ToLower(resolved)

	for _, kw := range decorativeKeywords {
		if strings.Contains(lower, kw) {
			return "decorative: " + kw
		}
	}

	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return ""
		}
	}
	for _, seg := range uploadPathSegments {
		if strings.Contains(lower, seg) {
			return ""
		}
	}

	return "no image extension or upload path"
}
