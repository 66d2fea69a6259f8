package pipeline

import (
	"github.com/nao1215/comicscan/internal/analysis"
	"github.com/nao1215/comicscan/internal/database"
)

// Session bundles the mutable caches of one processing run: the persistent
// download cache, the in-memory extraction cache, and the usage ledger.
//
// Design decision: The session travels explicitly through every component
// that touches shared state instead of living in package globals. Two runs
// with separate sessions cannot observe each other, and tests inject a
// fresh session per case.
type Session struct {
	// Downloads caches raw fetched bytes across the crawl and filter.
	// Nil disables download caching.
	Downloads *database.DownloadCache

	// Extractions memoizes per-image analysis results for this session.
	Extractions *analysis.ExtractionCache

	// Ledger accumulates per-model usage across every analysis call.
	Ledger *analysis.Ledger
}

// NewSession creates a session around an optional download cache.
func NewSession(downloads *database.DownloadCache) *Session {
	return &Session{
		Downloads:   downloads,
		Extractions: analysis.NewExtractionCache(),
		Ledger:      analysis.NewLedger(),
	}
}

// Close releases the session's persistent resources.
func (s *Session) Close() error {
	if s.Downloads != nil {
		return s.Downloads.Close()
	}
	return nil
}
