package analysis

import (
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/comicscan/internal/model"
)

// Fingerprint derives the extraction cache key. Identical content analyzed
// by the same model under the same prompt version for the same image slot
// always maps to the same key; any change to those inputs changes it.
func Fingerprint(content []byte, modelID, promptVersion string, episode, page int) string {
	h := sha3.New256()
	h.Write(content)
	fmt.Fprintf(h, "|%s|%s|%d|%d", modelID, promptVersion, episode, page)
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractionCache memoizes per-image extraction results within one
// processing session. A nil fact is a cached value too: a call that failed
// once is not re-attempted for the same key.
//
// Design decision: The cache is a plain guarded map rather than a table in
// the download database. Extraction results are session-scoped and
// discarded with the run, so persisting them would only serve stale facts
// across prompt revisions.
type ExtractionCache struct {
	mu      sync.Mutex
	entries map[string]*model.ExtractionFact
}

// NewExtractionCache creates an empty session cache.
func NewExtractionCache() *ExtractionCache {
	return &ExtractionCache{entries: make(map[string]*model.ExtractionFact)}
}

// Get returns the cached fact for key. ok is false when the key has never
// been stored; a stored nil fact returns (nil, true).
func (c *ExtractionCache) Get(key string) (*model.ExtractionFact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fact, ok := c.entries[key]
	return fact, ok
}

// Put stores fact under key, overwriting any previous entry.
func (c *ExtractionCache) Put(key string, fact *model.ExtractionFact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = fact
}

// Len returns the number of stored entries.
func (c *ExtractionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
