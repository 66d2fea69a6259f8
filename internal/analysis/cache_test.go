package analysis

import (
	"testing"

	"github.com/nao1215/comicscan/internal/model"
)

// TestFingerprint tests key stability and sensitivity.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := Fingerprint([]byte("img"), "model-a", PromptVersion, 1, 2)
	if base == "" {
		t.Fatal("empty fingerprint")
	}

	if got := Fingerprint([]byte("img"), "model-a", PromptVersion, 1, 2); got != base {
		t.Error("identical inputs produced different fingerprints")
	}

	variants := map[string]string{
		"content":        Fingerprint([]byte("other"), "model-a", PromptVersion, 1, 2),
		"model":          Fingerprint([]byte("img"), "model-b", PromptVersion, 1, 2),
		"prompt version": Fingerprint([]byte("img"), "model-a", "other", 1, 2),
		"episode":        Fingerprint([]byte("img"), "model-a", PromptVersion, 2, 2),
		"page":           Fingerprint([]byte("img"), "model-a", PromptVersion, 1, 3),
	}
	for name, got := range variants {
		if got == base {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

// TestExtractionCache tests get/put semantics including cached nil.
func TestExtractionCache(t *testing.T) {
	t.Parallel()

	cache := NewExtractionCache()

	if _, ok := cache.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	fact := model.EmptyFact(1, 1)
	fact.Confidence = 0.9
	cache.Put("a", &fact)

	got, ok := cache.Get("a")
	if !ok || got == nil || got.Confidence != 0.9 {
		t.Errorf("expected stored fact back, got %v (hit=%v)", got, ok)
	}

	// A failed call caches nil so the same key is never re-attempted.
	cache.Put("failed", nil)
	got, ok = cache.Get("failed")
	if !ok {
		t.Error("expected hit for cached nil")
	}
	if got != nil {
		t.Errorf("expected nil fact, got %v", got)
	}

	if cache.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", cache.Len())
	}
}
