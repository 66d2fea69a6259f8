package model

import "time"

// RunReport is the complete output of one run: the narrative summary, the
// final per-image facts, diagnostics, and the optional extras.
type RunReport struct {
	// URL is the target article URL the run started from.
	URL string `json:"url"`

	// Title is the caller-supplied article title, when given.
	Title string `json:"title,omitempty"`

	// GeneratedAt is when the run finished.
	GeneratedAt time.Time `json:"generated_at"`

	// Summary is the sectioned narrative summary. When SummaryFailed is
	// true it carries the error-tagged failure text instead.
	Summary string `json:"summary"`

	// SummaryFailed reports whether the summarization call failed.
	SummaryFailed bool `json:"summary_failed,omitempty"`

	// Facts lists the final per-image extraction records in discovery order.
	Facts []ExtractionFact `json:"facts"`

	// Meta carries the run diagnostics.
	Meta PipelineMeta `json:"meta"`

	// Consistency is the optional title consistency report.
	Consistency *ConsistencyReport `json:"consistency,omitempty"`

	// EstimatedCost is the run cost in the display currency. Only valid
	// when CostEstimated is true.
	EstimatedCost float64 `json:"estimated_cost,omitempty"`

	// CostEstimated reports whether unit prices were supplied.
	CostEstimated bool `json:"cost_estimated,omitempty"`
}
