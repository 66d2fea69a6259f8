package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed article page. It wraps the document-query backend behind
// a small capability surface (ordered first-match selector lookup, URL
// resolution, raw node access) so traversal logic stays independent of the
// concrete backend and testable against synthetic documents.
//
// A Page is immutable once created and is discarded after the traversal
// step that consumes it.
type Page struct {
	doc  *goquery.Document
	base *url.URL
}

// ParsePage parses HTML content fetched from baseURL.
//
// Design decision: We parse with goquery rather than walking x/net/html
// nodes by hand because the crawl heuristics are expressed as ordered CSS
// selector lists (".pagination a", ".entry-content", ...) and first-match
// semantics; hand-rolled tag walking cannot express those cleanly.
func ParsePage(body []byte, baseURL string) (*Page, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return &Page{doc: doc, base: u}, nil
}

// BaseURL returns the URL the page was fetched from.
func (p *Page) BaseURL() *url.URL { return p.base }

// Find returns all nodes matching the CSS selector.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// FindFirstMatching tries selectors in order and returns the matches of the
// first selector that yields any, along with the winning selector. Matches
// from different selectors are never merged. Returns (nil, "") when no
// selector matches.
func (p *Page) FindFirstMatching(selectors []string) (*goquery.Selection, string) {
	for _, sel := range selectors {
		if s := p.doc.Find(sel); s.Length() > 0 {
			return s, sel
		}
	}
	return nil, ""
}

// Root returns the root HTML node for document-order traversal.
func (p *Page) Root() *html.Node {
	if len(p.doc.Nodes) == 0 {
		return nil
	}
	return p.doc.Nodes[0]
}

// ResolveURL resolves an href against the page URL to an absolute,
// canonical form. Non-navigable schemes and bare fragments resolve to "".
func (p *Page) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	if strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.base.ResolveReference(u)
	resolved.Fragment = ""
	return resolved.String()
}

// SameHost reports whether an absolute URL points at the page's host.
func (p *Page) SameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, p.base.Host)
}
