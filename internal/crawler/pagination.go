package crawler

import (
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/width"
)

// defaultPaginationSelectors is the ordered list of structural pagination
// selectors. The first selector with any matches wins; results from
// different selectors are never merged.
var defaultPaginationSelectors = []string{
	".pagination a",
	".page-numbers a",
	".pager a",
	".wp-pagenavi a",
	"nav.navigation a",
	".post-page-numbers",
	"a.page-link",
	".pages a",
}

// navigationTokens are link texts that point at a page relative to the
// current one rather than naming it. Source-locale and English forms.
var navigationTokens = map[string]bool{
	"next":     true,
	"prev":     true,
	"previous": true,
	"»":        true,
	"«":        true,
	"›":        true,
	"‹":        true,
	"次へ":       true,
	"前へ":       true,
}

// unrankedPage is the sort rank for same-article URLs whose path suffix is
// not a page number. It assumes real articles have fewer pages than this;
// unranked URLs sort last, keeping their discovery order.
const unrankedPage = 999

// Resolver discovers the ordered set of same-article page URLs from a
// parsed page. Resolving the same page twice yields the same list.
type Resolver struct {
	selectors []string
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPaginationSelectors overrides the built-in selector list,
// typically from a site profile.
func WithPaginationSelectors(selectors []string) ResolverOption {
	return func(r *Resolver) {
		if len(selectors) > 0 {
			r.selectors = selectors
		}
	}
}

// WithResolverLogger sets a custom logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a pagination resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		selectors: defaultPaginationSelectors,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the ordered same-article page URLs for the given page,
// including the base URL itself. Ordering: the base path ranks 1, a path of
// basePath/<n> ranks n, everything else ranks last in discovery order.
func (r *Resolver) Resolve(page *Page) []string {
	baseURL := page.BaseURL().String()
	basePath := strings.TrimRight(page.BaseURL().Path, "/")

	links, selector := page.FindFirstMatching(r.selectors)
	if selector != "" {
		r.logger.Debug("pagination selector matched", "selector", selector, "links", links.Length())
	} else {
		// No structural pagination. Fall back to bare numeric links that
		// stay under the article's path (e.g. /archives/42/2).
		links = r.numericLinks(page, basePath)
		if links != nil {
			r.logger.Debug("numeric pagination links detected", "links", links.Length())
		}
	}

	urls := []string{baseURL}
	seen := map[string]bool{baseURL: true}

	if links != nil {
		links.Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			resolved := page.ResolveURL(href)
			if resolved == "" || seen[resolved] || !page.SameHost(resolved) {
				return
			}
			if navigationTokens[strings.ToLower(strings.TrimSpace(s.Text()))] {
				return
			}
			urls = append(urls, resolved)
			seen[resolved] = true
		})
	}

	sort.SliceStable(urls, func(i, j int) bool {
		return pageRank(urls[i], basePath) < pageRank(urls[j], basePath)
	})

	if len(urls) > 1 {
		r.logger.Debug("article pages resolved", "count", len(urls))
	}

	return urls
}

// numericLinks returns all anchors whose visible text is purely numeric and
// whose resolved path is a prefix of the article's base path.
func (r *Resolver) numericLinks(page *Page, basePath string) *goquery.Selection {
	return page.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if !isNumericText(s.Text()) {
			return false
		}
		href, ok := s.Attr("href")
		if !ok {
			return false
		}
		resolved := page.ResolveURL(href)
		if resolved == "" {
			return false
		}
		u, err := url.Parse(resolved)
		if err != nil {
			return false
		}
		return strings.HasPrefix(strings.TrimRight(u.Path, "/"), basePath)
	})
}

// isNumericText reports whether the trimmed link text consists solely of
// digits. Full-width digits (２, ３) common on Japanese sites are folded to
// their ASCII forms first.
func isNumericText(text string) bool {
	folded := width.Fold.String(strings.TrimSpace(text))
	if folded == "" {
		return false
	}
	for _, r := range folded {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pageRank extracts the pagination rank of a URL relative to the article's
// base path: the base path itself is page 1, basePath/<digits> is page
// <digits>, anything else is unranked and sorts last.
func pageRank(rawURL, basePath string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return unrankedPage
	}

	path := strings.TrimRight(u.Path, "/")
	if path == basePath {
		return 1
	}
	if suffix, ok := strings.CutPrefix(path, basePath+"/"); ok {
		if n, err := strconv.Atoi(suffix); err == nil {
			return n
		}
	}
	return unrankedPage
}
