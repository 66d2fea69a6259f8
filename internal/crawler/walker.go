package crawler

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/comicscan/internal/model"
)

// DefaultNextEpisodeMarkers are the marker phrases that introduce the link
// to the next episode of a serial. The Japanese forms match the observed
// site conventions; the matcher is pluggable because generalizing beyond
// them is guesswork.
var DefaultNextEpisodeMarkers = []string{"【次の話】", "次の話", "next episode"}

// PageFetcher fetches one page's HTML. Implemented by fetcher.Client;
// tests supply fakes.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// MarkerMatcher decides whether a text node marks the next-episode link.
type MarkerMatcher func(text string) bool

// PhraseMatcher returns a MarkerMatcher that fires when the text contains
// any of the given phrases.
func PhraseMatcher(phrases []string) MarkerMatcher {
	return func(text string) bool {
		for _, p := range phrases {
			if p != "" && strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}

// Walker follows an article's pagination, then its next-episode link,
// until the configured episode count is reached or the chain ends.
type Walker struct {
	fetch     PageFetcher
	resolver  *Resolver
	extractor *Extractor
	episodes  int
	matcher   MarkerMatcher
	logger    *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithEpisodes sets the episode target. Values below 1 are treated as 1.
func WithEpisodes(n int) WalkerOption {
	return func(w *Walker) {
		if n >= 1 {
			w.episodes = n
		}
	}
}

// WithMarkerMatcher sets the next-episode marker matcher.
func WithMarkerMatcher(m MarkerMatcher) WalkerOption {
	return func(w *Walker) {
		if m != nil {
			w.matcher = m
		}
	}
}

// WithWalkerLogger sets a custom logger.
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates an episode chain walker driving the given fetcher,
// resolver, and extractor.
func NewWalker(fetch PageFetcher, resolver *Resolver, extractor *Extractor, opts ...WalkerOption) *Walker {
	w := &Walker{
		fetch:     fetch,
		resolver:  resolver,
		extractor: extractor,
		episodes:  1,
		matcher:   PhraseMatcher(DefaultNextEpisodeMarkers),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WalkResult is the outcome of one chain walk. Walking fewer episodes than
// requested is not an error; callers compare EpisodesWalked against
// EpisodesRequested to report the mismatch.
type WalkResult struct {
	// Candidates are all discovered image candidates, deduplicated by URL,
	// in discovery order (episode ascending, then page ascending, then
	// within-page order), tagged with their episode and page.
	Candidates []model.ImageCandidate

	// EpisodesRequested is the configured episode target.
	EpisodesRequested int

	// EpisodesWalked is the number of episodes actually visited.
	EpisodesWalked int

	// PagesFetched counts every page fetch attempt, including failures.
	PagesFetched int
}

// Walk traverses the episode chain starting at startURL.
//
// Fetch failures never abort the walk: a failed additional page contributes
// zero images and traversal continues; a failed episode entry page ends the
// chain early. The walk always terminates: each iteration either reaches
// the episode target or follows at most one next-link, and a missing
// next-link stops the loop.
func (w *Walker) Walk(ctx context.Context, startURL string) (*WalkResult, error) {
	result := &WalkResult{
		Candidates:        make([]model.ImageCandidate, 0),
		EpisodesRequested: w.episodes,
	}
	seen := make(map[string]bool)

	current := startURL
	for current != "" && result.EpisodesWalked < w.episodes {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		episode := result.EpisodesWalked + 1

		result.PagesFetched++
		body, err := w.fetch.FetchPage(ctx, current)
		if err != nil {
			w.logger.Debug("episode entry page failed", "episode", episode, "url", current, "error", err)
			break
		}
		first, err := ParsePage(body, current)
		if err != nil {
			w.logger.Debug("episode entry page unparseable", "episode", episode, "url", current, "error", err)
			break
		}

		result.EpisodesWalked = episode
		pageURLs := w.resolver.Resolve(first)
		next := w.findNextEpisodeURL(first)

		for rank, pageURL := range pageURLs {
			page := first
			if pageURL != current {
				result.PagesFetched++
				b, err := w.fetch.FetchPage(ctx, pageURL)
				if err != nil {
					w.logger.Debug("page skipped", "episode", episode, "page", rank+1, "url", pageURL, "error", err)
					continue
				}
				page, err = ParsePage(b, pageURL)
				if err != nil {
					continue
				}
			}

			for _, cand := range w.extractor.Extract(page) {
				if seen[cand.URL] {
					continue
				}
				cand.Episode = episode
				cand.Page = rank + 1
				result.Candidates = append(result.Candidates, cand)
				seen[cand.URL] = true
			}

			if next == "" && page != first {
				next = w.findNextEpisodeURL(page)
			}
		}

		w.logger.Info("episode walked",
			"episode", episode,
			"pages", len(pageURLs),
			"images", len(result.Candidates),
			"next", next != "",
		)

		current = next
	}

	return result, nil
}

// findNextEpisodeURL searches the page in document order for a text node
// matching the marker, then resolves the nearest enclosing link, or failing
// that the nearest following link, to an absolute URL. Empty when the page
// carries no next-episode marker.
func (w *Walker) findNextEpisodeURL(page *Page) string {
	root := page.Root()
	if root == nil {
		return ""
	}

	markerSeen := false
	var found string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}

		if n.Type == html.TextNode && !markerSeen && w.matcher(n.Data) {
			markerSeen = true
			if href := enclosingHref(n); href != "" {
				if resolved := page.ResolveURL(href); resolved != "" {
					found = resolved
					return
				}
			}
			// No enclosing anchor; the traversal continues and the next
			// anchor in document order wins.
		}

		if markerSeen && n.Type == html.ElementNode && n.Data == "a" {
			if href := nodeAttr(n, "href"); href != "" {
				if resolved := page.ResolveURL(href); resolved != "" {
					found = resolved
					return
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return found
}

// enclosingHref climbs from a text node to the nearest ancestor anchor.
func enclosingHref(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "a" {
			return nodeAttr(p, "href")
		}
	}
	return ""
}

// nodeAttr retrieves an attribute value from an HTML node.
func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
