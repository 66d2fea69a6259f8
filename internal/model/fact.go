package model

// Character describes one character observed in a comic image.
type Character struct {
	// Label is how the character is identified (a name if legible,
	// otherwise a descriptive label such as "young woman in apron").
	Label string `json:"label"`

	// RelationTerms are relationship words tied to this character
	// (e.g., "mother-in-law", "coworker").
	RelationTerms []string `json:"relation_terms,omitempty"`

	// Evidence is the visual or textual cue supporting the identification.
	Evidence string `json:"evidence,omitempty"`
}

// ExtractionFact is the structured result of analyzing a single image.
// A failed extraction is represented by an empty-facts placeholder with
// Confidence 0 (see EmptyFact), never by a missing slot in the facts slice.
type ExtractionFact struct {
	// Episode and Page mirror the tags of the source image.
	Episode int `json:"episode"`
	Page    int `json:"page"`

	// Characters lists the characters visible in the image.
	Characters []Character `json:"characters"`

	// Events lists things that happen in the image, in reading order.
	Events []string `json:"events"`

	// Quotes holds notable dialogue, verbatim where legible.
	Quotes []string `json:"quotes,omitempty"`

	// Confidence is the analyzer's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Uncertainties lists elements the analyzer could not read or resolve.
	Uncertainties []string `json:"uncertainties,omitempty"`

	// ProvenanceModel is the model identifier that produced this fact.
	ProvenanceModel string `json:"provenance_model,omitempty"`

	// Usage is the resource consumption of the call that produced this fact.
	Usage Usage `json:"usage"`
}

// EmptyFact returns the placeholder fact used when extraction fails for an
// image. Confidence 0 guarantees the suspicion evaluator flags it.
func EmptyFact(episode, page int) ExtractionFact {
	return ExtractionFact{
		Episode:    episode,
		Page:       page,
		Characters: []Character{},
		Events:     []string{},
		Confidence: 0,
	}
}

// ExtractionOutcome is the tagged result of one analysis call. Exactly one
// of the three variants is produced per call: ValidFacts for a well-formed
// structured payload, MalformedResponse when the service answered but the
// payload could not be decoded, and CallFailed when the call itself failed.
//
// Design decision: A sealed variant type replaces probing loosely-typed
// JSON maps. Callers switch on the concrete type and cannot forget the
// failure cases.
type ExtractionOutcome interface {
	extractionOutcome()
}

// ValidFacts carries a successfully decoded extraction payload.
type ValidFacts struct {
	Fact ExtractionFact
}

// MalformedResponse carries the raw text of an undecodable payload.
type MalformedResponse struct {
	RawText string
}

// CallFailed records why an analysis call produced no payload at all.
type CallFailed struct {
	Reason string
}

func (ValidFacts) extractionOutcome()        {}
func (MalformedResponse) extractionOutcome() {}
func (CallFailed) extractionOutcome()        {}

// SuspicionRecord accumulates the reasons a single image's extraction
// result is considered unreliable. Records are deduplicated by ImageIndex;
// reasons are appended, never replaced.
type SuspicionRecord struct {
	// ImageIndex is the image's position in discovery order, starting at 0.
	ImageIndex int `json:"image_index"`

	// Reasons lists every heuristic or verifier that flagged this image.
	Reasons []string `json:"reasons"`
}
