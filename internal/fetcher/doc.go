// Package fetcher performs the HTTP fetching for comicscan: article pages
// and candidate images.
//
// Every fetch is attempted exactly once with a bounded timeout and a fixed
// browser-like header profile (comic hosts and their CDNs commonly reject
// bot user agents and referer-less image requests). Failures are returned
// as *FetchError values that distinguish transport errors, timeouts, and
// non-success statuses; callers skip the affected URL and continue.
package fetcher
