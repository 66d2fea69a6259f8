package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nao1215/comicscan/internal/analysis"
	"github.com/nao1215/comicscan/internal/model"
)

// Suspicion heuristics. The marker list covers how both Japanese and
// English responses mark unreadable content.
const (
	// minPayloadLength is the minimum serialized content payload length in
	// bytes; anything shorter carries no usable facts.
	minPayloadLength = 60

	// unreadableMarkerLimit is how many unreadable markers a payload may
	// contain before it is flagged.
	unreadableMarkerLimit = 3

	// briefPreviewLimit bounds the aggregation-input preview kept in the
	// diagnostics.
	briefPreviewLimit = 500
)

var unreadableMarkers = []string{"不明", "判読不能", "unknown", "unreadable"}

// truncate enforces the hard image cap, keeping the head of the discovery
// order and recording a warning.
func (p *Pipeline) truncate(_ context.Context, st *runState) error {
	if len(st.images) <= p.maxImages {
		return nil
	}

	st.truncated = true
	st.truncationWarning = fmt.Sprintf("%d candidate images exceeded the cap of %d; only the first %d were analyzed",
		len(st.images), p.maxImages, p.maxImages)
	st.images = st.images[:p.maxImages]

	p.logger.Warn("image cap reached", "cap", p.maxImages)
	return nil
}

// extract runs primary extraction over every image in discovery order.
// A failed or malformed extraction degrades to an empty-facts placeholder
// flagged "extraction failed"; the facts slice never has gaps.
func (p *Pipeline) extract(ctx context.Context, st *runState) error {
	st.facts = make([]model.ExtractionFact, len(st.images))

	for i, img := range st.images {
		fact, fromCache := p.cachedExtract(ctx, img, p.primaryModel)
		if fact == nil {
			st.facts[i] = model.EmptyFact(img.Episode, img.Page)
			st.suspect(i, "extraction failed")
			continue
		}
		st.facts[i] = *fact

		p.logger.Debug("image extracted",
			"index", i,
			"episode", img.Episode,
			"page", img.Page,
			"confidence", fact.Confidence,
			"cached", fromCache,
		)
	}
	return nil
}

// cachedExtract runs one extraction call through the session cache.
// A nil return means the call failed or the response was malformed; that
// outcome is cached too, so the same key is attempted at most once per
// session. fromCache reports a cache hit.
func (p *Pipeline) cachedExtract(ctx context.Context, img model.ContentImage, modelID string) (fact *model.ExtractionFact, fromCache bool) {
	key := analysis.Fingerprint(img.TransmitBytes, modelID, analysis.PromptVersion, img.Episode, img.Page)
	if cached, ok := p.session.Extractions.Get(key); ok {
		return cached, true
	}

	blocks := []analysis.ContentBlock{
		analysis.ImageBlock(img.TransmitMediaType, img.TransmitBytes),
		analysis.TextBlock(analysis.ExtractionPrompt(img.Episode, img.Page, p.title)),
	}

	var outcome model.ExtractionOutcome
	text, usage, err := p.client.Complete(ctx, modelID, p.maxTokens, blocks)
	if err != nil {
		outcome = model.CallFailed{Reason: err.Error()}
	} else {
		p.session.Ledger.Record(modelID, usage)
		outcome = analysis.ParseExtraction(text, img.Episode, img.Page)
	}

	switch o := outcome.(type) {
	case model.ValidFacts:
		extracted := o.Fact
		extracted.ProvenanceModel = modelID
		extracted.Usage = usage
		p.session.Extractions.Put(key, &extracted)
		return &extracted, false
	case model.MalformedResponse:
		p.logger.Warn("extraction response malformed",
			"model", modelID, "url", img.URL, "raw", clip(o.RawText, 200))
		p.session.Extractions.Put(key, nil)
		return nil, false
	case model.CallFailed:
		p.logger.Warn("extraction call failed",
			"model", modelID, "url", img.URL, "reason", o.Reason)
		p.session.Extractions.Put(key, nil)
		return nil, false
	}
	return nil, false
}

// suspect applies the heuristic validators to every fact. Reasons stack:
// one image can be flagged for several problems at once.
func (p *Pipeline) suspect(_ context.Context, st *runState) error {
	for i, fact := range st.facts {
		var reasons []string

		if fact.Confidence < p.threshold {
			reasons = append(reasons, fmt.Sprintf("confidence %.2f below threshold %.2f", fact.Confidence, p.threshold))
		}

		if fact.Characters == nil || fact.Events == nil {
			reasons = append(reasons, "missing fact lists")
		} else if len(fact.Characters) == 0 && len(fact.Events) == 0 {
			reasons = append(reasons, "no characters or events")
		}

		payload := contentPayload(fact)
		if n := markerCount(payload); n >= unreadableMarkerLimit {
			reasons = append(reasons, fmt.Sprintf("%d unreadable markers", n))
		}
		if len(payload) < minPayloadLength {
			reasons = append(reasons, "payload too short")
		}

		st.suspect(i, reasons...)
	}

	p.logger.Debug("suspicion evaluated", "suspicious", len(st.suspicion), "total", len(st.facts))
	return nil
}

// contentPayload serializes the content-bearing fields of a fact for the
// length and marker heuristics. Bookkeeping fields (usage, provenance)
// would pad the length without carrying facts.
func contentPayload(fact model.ExtractionFact) string {
	payload, err := json.Marshal(struct {
		Characters    []model.Character `json:"characters"`
		Events        []string          `json:"events"`
		Quotes        []string          `json:"quotes,omitempty"`
		Uncertainties []string          `json:"uncertainties,omitempty"`
	}{fact.Characters, fact.Events, fact.Quotes, fact.Uncertainties})
	if err != nil {
		return ""
	}
	return string(payload)
}

func markerCount(payload string) int {
	n := 0
	lower := strings.ToLower(payload)
	for _, marker := range unreadableMarkers {
		n += strings.Count(lower, marker)
	}
	return n
}

// crossVerify sends the full fact brief, text only, to the verification
// tier and merges flagged indices into the suspicion set. A failed or
// undecodable verification flags nothing; the stage is advisory.
func (p *Pipeline) crossVerify(ctx context.Context, st *runState) error {
	brief, err := briefFor(st.facts)
	if err != nil {
		p.logger.Warn("verification skipped: brief serialization failed", "error", err)
		return nil
	}

	blocks := []analysis.ContentBlock{analysis.TextBlock(analysis.VerificationPrompt(brief))}
	text, usage, err := p.client.Complete(ctx, p.verifyModel, p.maxTokens, blocks)
	if err != nil {
		p.logger.Warn("verification call failed", "model", p.verifyModel, "error", err)
		return nil
	}
	p.session.Ledger.Record(p.verifyModel, usage)

	seen := make(map[int]bool)
	for _, idx := range analysis.ParseFlaggedIndices(text) {
		if idx < 0 || idx >= len(st.facts) || seen[idx] {
			continue
		}
		seen[idx] = true
		st.suspect(idx, "flagged by cross-verification")
	}

	p.logger.Debug("cross-verification merged", "flagged", len(seen))
	return nil
}

// escalate re-runs extraction on every suspicious index with the fallback
// tier, ascending. A valid re-extraction replaces the record in place,
// provenance and usage included; a failed one leaves the prior record.
// The suspicion set itself is never modified here.
func (p *Pipeline) escalate(ctx context.Context, st *runState) error {
	for _, i := range st.suspiciousIndices() {
		fact, fromCache := p.cachedExtract(ctx, st.images[i], p.fallbackModel)
		if fact == nil {
			p.logger.Debug("escalation produced nothing", "index", i, "model", p.fallbackModel)
			continue
		}

		st.facts[i] = *fact
		st.escalated++
		p.logger.Debug("image escalated",
			"index", i,
			"model", p.fallbackModel,
			"confidence", fact.Confidence,
			"cached", fromCache,
		)
	}
	return nil
}

// aggregate serializes the final facts into the brief and requests the
// sectioned summary. Summarization failure is the run's one terminal
// condition; it is surfaced as error-tagged summary text, never returned.
func (p *Pipeline) aggregate(ctx context.Context, st *runState) error {
	brief, err := briefFor(st.facts)
	if err != nil {
		st.summary = "解析エラー: " + err.Error()
		st.summaryFailed = true
		return nil
	}
	st.briefPreview = clip(brief, briefPreviewLimit)

	blocks := []analysis.ContentBlock{analysis.TextBlock(analysis.SummaryPrompt(brief))}
	text, usage, err := p.client.Complete(ctx, p.summaryModel, p.summaryMaxTokens, blocks)
	if err != nil {
		p.logger.Error("summarization failed", "model", p.summaryModel, "error", err)
		st.summary = "解析エラー: " + err.Error()
		st.summaryFailed = true
		return nil
	}

	p.session.Ledger.Record(p.summaryModel, usage)
	st.summary = text
	return nil
}

// checkConsistency compares the caller-supplied title against the
// generated summary with the fixed rubric.
func (p *Pipeline) checkConsistency(ctx context.Context, st *runState) error {
	if st.summaryFailed {
		p.logger.Warn("consistency check skipped: no summary to compare")
		return nil
	}

	blocks := []analysis.ContentBlock{analysis.TextBlock(analysis.ConsistencyPrompt(p.title, st.summary))}
	text, usage, err := p.client.Complete(ctx, p.consistencyModel, p.maxTokens, blocks)
	if err != nil {
		p.logger.Warn("consistency check failed", "model", p.consistencyModel, "error", err)
		st.consistency = &model.ConsistencyReport{
			Verdict: model.VerdictUnknown,
			Text:    "チェックエラー: " + err.Error(),
			Model:   p.consistencyModel,
		}
		return nil
	}

	p.session.Ledger.Record(p.consistencyModel, usage)
	st.consistency = &model.ConsistencyReport{
		Verdict: analysis.ParseConsistencyVerdict(text),
		Text:    text,
		Model:   p.consistencyModel,
	}
	return nil
}

// briefEntry is one image's slot in the serialized aggregation brief.
type briefEntry struct {
	Index         int               `json:"index"`
	Episode       int               `json:"episode"`
	Page          int               `json:"page"`
	Confidence    float64           `json:"confidence"`
	Characters    []model.Character `json:"characters"`
	Events        []string          `json:"events"`
	Quotes        []string          `json:"quotes,omitempty"`
	Uncertainties []string          `json:"uncertainties,omitempty"`
}

// briefFor serializes the facts, discovery order, into the compact brief
// shared by the verification and aggregation prompts.
func briefFor(facts []model.ExtractionFact) (string, error) {
	entries := make([]briefEntry, len(facts))
	for i, fact := range facts {
		entries[i] = briefEntry{
			Index:         i,
			Episode:       fact.Episode,
			Page:          fact.Page,
			Confidence:    fact.Confidence,
			Characters:    fact.Characters,
			Events:        fact.Events,
			Quotes:        fact.Quotes,
			Uncertainties: fact.Uncertainties,
		}
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to serialize fact brief: %w", err)
	}
	return string(payload), nil
}

// clip bounds s to at most limit bytes without splitting a rune.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.ToValidUTF8(s[:limit], "") + "..."
}
