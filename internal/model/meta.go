package model

// Usage counts the resource units consumed by analysis calls.
// The fields mirror the analysis service's usage block.
type Usage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
}

// Add returns the element-wise sum of u and v.
func (u Usage) Add(v Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + v.InputTokens,
		OutputTokens:        u.OutputTokens + v.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens + v.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens + v.CacheReadTokens,
	}
}

// IsZero reports whether no resource units were recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// StageModels records which model identifier served each pipeline stage.
// Empty fields mean the stage did not run.
type StageModels struct {
	Primary     string `json:"primary"`
	Fallback    string `json:"fallback,omitempty"`
	Verify      string `json:"verify,omitempty"`
	Summary     string `json:"summary"`
	Consistency string `json:"consistency,omitempty"`
}

// PipelineMeta is the aggregate diagnostics of one pipeline run.
// Per-image facts and suspicion records are folded into this structure
// before the run state is discarded.
type PipelineMeta struct {
	// TotalImages is the number of images actually analyzed, after any cap
	// truncation.
	TotalImages int `json:"total_images"`

	// SuspiciousCount is the number of distinct suspicious image indices.
	SuspiciousCount int `json:"suspicious_count"`

	// EscalatedCount is the number of images successfully re-extracted by
	// the fallback model.
	EscalatedCount int `json:"escalated_count"`

	// Truncated indicates the candidate set exceeded the configured cap.
	Truncated bool `json:"truncated,omitempty"`

	// TruncationWarning describes the truncation when Truncated is true.
	TruncationWarning string `json:"truncation_warning,omitempty"`

	// Suspicious lists every suspicion record, ordered by image index.
	Suspicious []SuspicionRecord `json:"suspicious,omitempty"`

	// ModelUsage accumulates consumed resource units per model identifier.
	ModelUsage map[string]Usage `json:"model_usage"`

	// Models records the model identifier used per stage.
	Models StageModels `json:"models"`

	// BriefPreview is a truncated preview of the aggregation input sent to
	// the summarization stage, for debugging prompt issues.
	BriefPreview string `json:"brief_preview,omitempty"`
}

// ConsistencyVerdict is the three-way outcome of the title consistency check.
type ConsistencyVerdict string

// Consistency verdicts, from best to worst.
const (
	VerdictConsistent   ConsistencyVerdict = "consistent"
	VerdictMinorDoubt   ConsistencyVerdict = "minor_doubt"
	VerdictInconsistent ConsistencyVerdict = "inconsistent"
	VerdictUnknown      ConsistencyVerdict = "unknown"
)

// ConsistencyReport is the rubric-based comparison of a caller-supplied
// article title against the generated summary. The rubric scores four fixed
// dimensions: thematic alignment, character/relationship alignment,
// outcome/lesson alignment, and exaggeration.
type ConsistencyReport struct {
	// Verdict is parsed from the model's response; VerdictUnknown when the
	// response carried no recognizable verdict marker.
	Verdict ConsistencyVerdict `json:"verdict"`

	// Text is the full rubric report as produced by the model.
	Text string `json:"text"`

	// Model is the model identifier that produced the report.
	Model string `json:"model"`
}
