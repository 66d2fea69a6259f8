package analysis

import (
	"math"
	"testing"

	"github.com/nao1215/comicscan/internal/model"
)

// TestLedgerRecord tests per-model accumulation.
func TestLedgerRecord(t *testing.T) {
	t.Parallel()

	ledger := NewLedger()
	ledger.Record("model-a", model.Usage{InputTokens: 100, OutputTokens: 10})
	ledger.Record("model-a", model.Usage{InputTokens: 50, OutputTokens: 5, CacheReadTokens: 20})
	ledger.Record("model-b", model.Usage{InputTokens: 200, OutputTokens: 40})

	totals := ledger.Totals()
	if len(totals) != 2 {
		t.Fatalf("expected 2 models, got %d", len(totals))
	}
	if got := totals["model-a"]; got.InputTokens != 150 || got.OutputTokens != 15 || got.CacheReadTokens != 20 {
		t.Errorf("unexpected model-a totals: %+v", got)
	}
	if got := totals["model-b"]; got.InputTokens != 200 || got.OutputTokens != 40 {
		t.Errorf("unexpected model-b totals: %+v", got)
	}

	sum := ledger.Sum()
	if sum.InputTokens != 350 || sum.OutputTokens != 55 {
		t.Errorf("unexpected sum: %+v", sum)
	}

	// Totals returns a copy; mutating it must not affect the ledger.
	totals["model-a"] = model.Usage{}
	if got := ledger.Totals()["model-a"]; got.InputTokens != 150 {
		t.Error("Totals leaked internal state")
	}
}

// TestLedgerEstimate tests cost estimation from unit prices.
func TestLedgerEstimate(t *testing.T) {
	t.Parallel()

	ledger := NewLedger()
	ledger.Record("model-a", model.Usage{
		InputTokens:         2_000_000,
		OutputTokens:        1_000_000,
		CacheCreationTokens: 500_000,
	})

	t.Run("without currency conversion", func(t *testing.T) {
		t.Parallel()

		// (2.5M input-side * 3) + (1M output * 15) = 22.5
		got := ledger.Estimate(Pricing{InputPerMTok: 3, OutputPerMTok: 15})
		if math.Abs(got-22.5) > 1e-9 {
			t.Errorf("expected 22.5, got %f", got)
		}
	})

	t.Run("with currency conversion", func(t *testing.T) {
		t.Parallel()

		got := ledger.Estimate(Pricing{InputPerMTok: 3, OutputPerMTok: 15, CurrencyRate: 150})
		if math.Abs(got-3375) > 1e-6 {
			t.Errorf("expected 3375, got %f", got)
		}
	})
}

// TestPricingEnabled tests the estimation gate.
func TestPricingEnabled(t *testing.T) {
	t.Parallel()

	if (Pricing{}).Enabled() {
		t.Error("zero pricing should be disabled")
	}
	if !(Pricing{InputPerMTok: 3}).Enabled() {
		t.Error("input price alone should enable estimation")
	}
	if !(Pricing{OutputPerMTok: 15}).Enabled() {
		t.Error("output price alone should enable estimation")
	}
}
