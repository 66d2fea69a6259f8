// Package database provides the SQLite-backed download cache.
//
// Raw image downloads are the expensive, re-fetchable artifact of a run:
// caching them with a short absolute expiry makes repeated runs against the
// same article (e.g. while tuning thresholds) cheap and polite to the
// origin. Extraction results are deliberately not stored here; they are
// session-scoped and live in memory (see internal/analysis).
package database
