package analysis

import (
	"sync"

	"github.com/nao1215/comicscan/internal/model"
)

// Ledger accumulates consumed resource units per model identifier across
// one processing session. It is the single source for the usage totals and
// cost estimate in the final report.
type Ledger struct {
	mu     sync.Mutex
	totals map[string]model.Usage
}

// NewLedger creates an empty usage ledger.
func NewLedger() *Ledger {
	return &Ledger{totals: make(map[string]model.Usage)}
}

// Record adds one call's usage to the running total for modelID.
func (l *Ledger) Record(modelID string, u model.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totals[modelID] = l.totals[modelID].Add(u)
}

// Totals returns a copy of the per-model usage totals.
func (l *Ledger) Totals() map[string]model.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]model.Usage, len(l.totals))
	for k, v := range l.totals {
		out[k] = v
	}
	return out
}

// Sum returns the usage total across all models.
func (l *Ledger) Sum() model.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum model.Usage
	for _, v := range l.totals {
		sum = sum.Add(v)
	}
	return sum
}

// Pricing holds the externally supplied unit prices used for cost
// estimation. Prices are per million tokens in the service's billing
// currency; CurrencyRate converts the result into the display currency.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
	CurrencyRate  float64
}

// Enabled reports whether any unit price was supplied. Without prices no
// estimate is produced.
func (p Pricing) Enabled() bool {
	return p.InputPerMTok > 0 || p.OutputPerMTok > 0
}

// Estimate returns the estimated cost of the recorded usage in the display
// currency. Cache-creation tokens bill as input tokens; cache-read tokens
// are already included in the input total the service reports and carry no
// extra charge here.
func (l *Ledger) Estimate(p Pricing) float64 {
	sum := l.Sum()

	rate := p.CurrencyRate
	if rate == 0 {
		rate = 1
	}

	input := float64(sum.InputTokens+sum.CacheCreationTokens) / 1e6 * p.InputPerMTok
	output := float64(sum.OutputTokens) / 1e6 * p.OutputPerMTok
	return (input + output) * rate
}
