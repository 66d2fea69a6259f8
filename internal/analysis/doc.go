// Package analysis talks to the Anthropic messages API and keeps the
// session-scoped bookkeeping around those calls.
//
// The Client is a thin transport: ordered content blocks in (text and
// base64 images), text plus usage counters out. Prompt construction and
// response parsing live in prompts.go under a single prompt-version tag;
// bumping the tag invalidates the extraction cache. The ExtractionCache
// memoizes per-image results by a SHA3 fingerprint of the transmitted
// bytes and call parameters, and the Ledger accumulates per-model usage
// totals for cost estimation.
package analysis
