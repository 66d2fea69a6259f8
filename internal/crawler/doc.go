// Package crawler provides the article traversal logic for comicscan.
//
// # Architecture
//
//   - Page: a parsed article page exposing a small query capability
//     (ordered first-match selectors, URL resolution, raw node access)
//   - Resolver: discovers the ordered same-article page URLs (pagination)
//   - Extractor: scans the main content region for image candidates and
//     applies the inclusion/exclusion heuristics
//   - Walker: follows pagination, then the next-episode link, until the
//     episode target is reached or the chain ends
//
// The crawler is deliberately not general purpose: it only follows
// same-article pagination and explicit next-episode links, never arbitrary
// links. All heuristics (selector lists, marker phrases) were tuned against
// real comic article sites and can be overridden per host via site
// profiles.
//
// # Ordering
//
// Image candidates are produced in discovery order: episode ascending, then
// page rank ascending, then within-page order, deduplicated by canonical
// URL with first-seen wins. The analysis pipeline's aggregation depends on
// this ordering being stable.
package crawler
