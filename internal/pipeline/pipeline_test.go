package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/comicscan/internal/analysis"
	"github.com/nao1215/comicscan/internal/model"
)

// fakeCompleter scripts analysis responses per stage. Stages are told
// apart by their request shape: extraction carries an image block, the
// text-only stages by their prompt markers.
type fakeCompleter struct {
	mu sync.Mutex

	// extract maps a model ID to the response for image calls. Missing
	// model IDs fail the call.
	extract map[string]string

	verifyText      string
	verifyErr       error
	summaryText     string
	summaryErr      error
	consistencyText string
	consistencyErr  error

	// counts tracks calls per kind ("extract:<model>", "verify",
	// "summary", "consistency").
	counts map[string]int
}

func (f *fakeCompleter) Complete(_ context.Context, modelID string, _ int, blocks []analysis.ContentBlock) (string, model.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}

	usage := model.Usage{InputTokens: 100, OutputTokens: 20}

	if len(blocks) > 0 && blocks[0].Type == "image" {
		f.counts["extract:"+modelID]++
		resp, ok := f.extract[modelID]
		if !ok {
			return "", model.Usage{}, fmt.Errorf("no scripted extraction for %s", modelID)
		}
		return resp, usage, nil
	}

	prompt := blocks[len(blocks)-1].Text
	switch {
	case strings.Contains(prompt, "flagged"):
		f.counts["verify"]++
		return f.verifyText, usage, f.verifyErr
	case strings.Contains(prompt, "整合性"):
		f.counts["consistency"]++
		return f.consistencyText, usage, f.consistencyErr
	default:
		f.counts["summary"]++
		return f.summaryText, usage, f.summaryErr
	}
}

func (f *fakeCompleter) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[kind]
}

// completerFunc adapts a function to the Completer interface.
type completerFunc func(ctx context.Context, modelID string, maxTokens int, blocks []analysis.ContentBlock) (string, model.Usage, error)

func (f completerFunc) Complete(ctx context.Context, modelID string, maxTokens int, blocks []analysis.ContentBlock) (string, model.Usage, error) {
	return f(ctx, modelID, maxTokens, blocks)
}

// factJSON builds a plausible extraction response with the given
// confidence. The payload is rich enough to pass the content heuristics.
func factJSON(confidence float64) string {
	return fmt.Sprintf(`{
		"characters": [{"label": "若い女性", "relation_terms": ["嫁"], "evidence": "エプロン姿で台所に立っている"}],
		"events": ["義母が嫌味を言う", "女性が言い返す"],
		"quotes": ["もう我慢しません"],
		"confidence": %.2f
	}`, confidence)
}

// testImages builds n distinct content images in discovery order.
func testImages(n int) []model.ContentImage {
	images := make([]model.ContentImage, n)
	for i := range images {
		images[i] = model.ContentImage{
			ImageCandidate: model.ImageCandidate{
				URL:     fmt.Sprintf("https://cdn.example.com/p%02d.jpg", i),
				Episode: 1,
				Page:    i + 1,
			},
			TransmitBytes:     []byte(fmt.Sprintf("image-%02d", i)),
			TransmitMediaType: "image/jpeg",
		}
	}
	return images
}

// TestPipelineSuspicionWithoutFallback tests the diagnostics of a run
// where one low-confidence image has no escalation tier to go to.
func TestPipelineSuspicionWithoutFallback(t *testing.T) {
	t.Parallel()

	high := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.9)},
		summaryText: "## あらすじ\n嫁姑の対立が描かれる。",
	}
	low := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.3)},
		summaryText: high.summaryText,
	}
	// Image index 2 ("image-02", base64 aW1hZ2UtMDI=) answers with low
	// confidence; everything else answers high.
	router := completerFunc(func(ctx context.Context, modelID string, maxTokens int, blocks []analysis.ContentBlock) (string, model.Usage, error) {
		if len(blocks) > 0 && blocks[0].Type == "image" && strings.HasPrefix(blocks[0].Source.Data, "aW1hZ2UtMDI") {
			return low.Complete(ctx, modelID, maxTokens, blocks)
		}
		return high.Complete(ctx, modelID, maxTokens, blocks)
	})

	p := New(router, NewSession(nil), "primary", WithThreshold(0.55))
	report, err := p.Run(context.Background(), testImages(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.SummaryFailed || report.Summary == "" {
		t.Errorf("expected summary despite suspicion, got %+v", report)
	}
	if report.Meta.SuspiciousCount != 1 {
		t.Errorf("expected suspicious=1, got %d", report.Meta.SuspiciousCount)
	}
	if report.Meta.EscalatedCount != 0 {
		t.Errorf("expected escalated=0, got %d", report.Meta.EscalatedCount)
	}
	if len(report.Meta.Suspicious) != 1 || report.Meta.Suspicious[0].ImageIndex != 2 {
		t.Fatalf("expected index 2 suspicious, got %+v", report.Meta.Suspicious)
	}
	if reasons := report.Meta.Suspicious[0].Reasons; len(reasons) == 0 || !strings.Contains(reasons[0], "confidence") {
		t.Errorf("expected a confidence reason, got %v", reasons)
	}
}

// TestPipelineEscalation tests that a valid fallback re-extraction
// replaces the record in place without touching the suspicion set.
func TestPipelineEscalation(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract: map[string]string{
			"primary":  factJSON(0.3),
			"fallback": factJSON(0.95),
		},
		summaryText: "## あらすじ\nまとまった。",
	}

	p := New(fake, NewSession(nil), "primary",
		WithThreshold(0.55),
		WithFallbackModel("fallback"),
	)
	report, err := p.Run(context.Background(), testImages(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Meta.EscalatedCount != 1 {
		t.Errorf("expected escalated=1, got %d", report.Meta.EscalatedCount)
	}
	if report.Meta.SuspiciousCount != 1 {
		t.Errorf("escalation must not rewrite the suspicion diagnostics, got %d", report.Meta.SuspiciousCount)
	}
	if got := report.Facts[0].ProvenanceModel; got != "fallback" {
		t.Errorf("expected fallback provenance, got %q", got)
	}
	if report.Facts[0].Confidence != 0.95 {
		t.Errorf("expected replaced confidence, got %f", report.Facts[0].Confidence)
	}
}

// TestPipelineEscalationFailure tests that a failed fallback call leaves
// the prior record untouched.
func TestPipelineEscalationFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.3)}, // fallback unscripted, so its calls fail
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary", WithFallbackModel("fallback"))
	report, err := p.Run(context.Background(), testImages(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Meta.EscalatedCount != 0 {
		t.Errorf("expected escalated=0, got %d", report.Meta.EscalatedCount)
	}
	if got := report.Facts[0].ProvenanceModel; got != "primary" {
		t.Errorf("expected prior record retained, got provenance %q", got)
	}
}

// TestPipelineFallbackEqualsPrimary tests that an identical fallback tier
// disables escalation entirely.
func TestPipelineFallbackEqualsPrimary(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.1)},
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary", WithFallbackModel("primary"))
	report, err := p.Run(context.Background(), testImages(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Meta.EscalatedCount != 0 {
		t.Errorf("expected zero escalations, got %d", report.Meta.EscalatedCount)
	}
	if got := fake.count("extract:primary"); got != 3 {
		t.Errorf("expected 3 extraction calls, got %d", got)
	}
}

// TestPipelineTruncation tests the hard cap with its warning.
func TestPipelineTruncation(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.9)},
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary", WithMaxImages(30))
	report, err := p.Run(context.Background(), testImages(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Meta.TotalImages != 30 {
		t.Errorf("expected 30 analyzed images, got %d", report.Meta.TotalImages)
	}
	if !report.Meta.Truncated || report.Meta.TruncationWarning == "" {
		t.Error("expected truncation warning")
	}
	if got := fake.count("extract:primary"); got != 30 {
		t.Errorf("expected 30 extraction calls, got %d", got)
	}
	if len(report.Facts) != 30 {
		t.Errorf("expected 30 facts, got %d", len(report.Facts))
	}
}

// TestPipelineExtractionCache tests that identical inputs against the same
// model produce one external call and two identical results.
func TestPipelineExtractionCache(t *testing.T) {
	t.Parallel()

	images := testImages(2)
	// Same bytes and the same episode/page slot: identical fingerprint.
	images[1].TransmitBytes = images[0].TransmitBytes
	images[1].Page = images[0].Page

	fake := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.9)},
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary")
	report, err := p.Run(context.Background(), images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.count("extract:primary"); got != 1 {
		t.Errorf("expected a single external call, got %d", got)
	}
	if report.Facts[0].Confidence != report.Facts[1].Confidence ||
		report.Facts[0].ProvenanceModel != report.Facts[1].ProvenanceModel {
		t.Errorf("expected identical cached results, got %+v vs %+v", report.Facts[0], report.Facts[1])
	}
}

// TestPipelineOrderPreserved tests discovery-order propagation into the
// final facts.
func TestPipelineOrderPreserved(t *testing.T) {
	t.Parallel()

	images := []model.ContentImage{
		{ImageCandidate: model.ImageCandidate{URL: "https://a/1", Episode: 1, Page: 1}, TransmitBytes: []byte("a"), TransmitMediaType: "image/jpeg"},
		{ImageCandidate: model.ImageCandidate{URL: "https://a/2", Episode: 1, Page: 2}, TransmitBytes: []byte("b"), TransmitMediaType: "image/jpeg"},
		{ImageCandidate: model.ImageCandidate{URL: "https://a/3", Episode: 2, Page: 1}, TransmitBytes: []byte("c"), TransmitMediaType: "image/jpeg"},
	}

	fake := &fakeCompleter{
		extract:     map[string]string{"primary": factJSON(0.9)},
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary")
	report, err := p.Run(context.Background(), images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][2]int{{1, 1}, {1, 2}, {2, 1}}
	for i, fact := range report.Facts {
		if fact.Episode != want[i][0] || fact.Page != want[i][1] {
			t.Errorf("fact %d: expected episode %d page %d, got %d/%d",
				i, want[i][0], want[i][1], fact.Episode, fact.Page)
		}
	}
}

// TestPipelineExtractionFailure tests degradation to an empty-facts
// placeholder.
func TestPipelineExtractionFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract:     map[string]string{}, // every extraction call fails
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary")
	report, err := p.Run(context.Background(), testImages(2))
	if err != nil {
		t.Fatalf("run must not abort on extraction failure: %v", err)
	}

	if len(report.Facts) != 2 {
		t.Fatalf("expected placeholder facts, got %d", len(report.Facts))
	}
	for i, fact := range report.Facts {
		if fact.Confidence != 0 {
			t.Errorf("fact %d: expected confidence 0, got %f", i, fact.Confidence)
		}
	}
	if report.Meta.SuspiciousCount != 2 {
		t.Fatalf("expected both images suspicious, got %d", report.Meta.SuspiciousCount)
	}
	if reasons := report.Meta.Suspicious[0].Reasons; reasons[0] != "extraction failed" {
		t.Errorf("expected extraction failed reason first, got %v", reasons)
	}
}

// TestPipelineMalformedResponse tests that undecodable payloads degrade
// the same way as failed calls.
func TestPipelineMalformedResponse(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract:     map[string]string{"primary": "画像を読み取れませんでした。"},
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary")
	report, err := p.Run(context.Background(), testImages(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Meta.SuspiciousCount != 1 {
		t.Errorf("expected suspicious placeholder, got %d", report.Meta.SuspiciousCount)
	}
}

// TestPipelineSummaryFailure tests the error-tagged terminal condition.
func TestPipelineSummaryFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract:    map[string]string{"primary": factJSON(0.9)},
		summaryErr: errors.New("rate limited"),
	}

	p := New(fake, NewSession(nil), "primary")
	report, err := p.Run(context.Background(), testImages(1))
	if err != nil {
		t.Fatalf("summary failure must not escape the pipeline: %v", err)
	}

	if !report.SummaryFailed {
		t.Error("expected SummaryFailed")
	}
	if !strings.Contains(report.Summary, "解析エラー") || !strings.Contains(report.Summary, "rate limited") {
		t.Errorf("expected error-tagged summary text, got %q", report.Summary)
	}
}

// TestPipelineVerification tests merging of verifier-flagged indices.
func TestPipelineVerification(t *testing.T) {
	t.Parallel()

	t.Run("flags merge into the suspicion set", func(t *testing.T) {
		t.Parallel()

		fake := &fakeCompleter{
			extract:     map[string]string{"primary": factJSON(0.9)},
			verifyText:  `{"flagged": [2, 2, 99, -1]}`,
			summaryText: "summary",
		}

		p := New(fake, NewSession(nil), "primary", WithVerification(""))
		report, err := p.Run(context.Background(), testImages(4))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Meta.SuspiciousCount != 1 {
			t.Fatalf("expected 1 suspicious image, got %d", report.Meta.SuspiciousCount)
		}
		record := report.Meta.Suspicious[0]
		if record.ImageIndex != 2 {
			t.Errorf("expected index 2 flagged, got %d", record.ImageIndex)
		}
		if len(record.Reasons) != 1 || record.Reasons[0] != "flagged by cross-verification" {
			t.Errorf("unexpected reasons: %v", record.Reasons)
		}
		if got := fake.count("verify"); got != 1 {
			t.Errorf("expected one verification call, got %d", got)
		}
	})

	t.Run("verification failure flags nothing", func(t *testing.T) {
		t.Parallel()

		fake := &fakeCompleter{
			extract:     map[string]string{"primary": factJSON(0.9)},
			verifyErr:   errors.New("overloaded"),
			summaryText: "summary",
		}

		p := New(fake, NewSession(nil), "primary", WithVerification("verifier"))
		report, err := p.Run(context.Background(), testImages(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Meta.SuspiciousCount != 0 {
			t.Errorf("expected no suspicion, got %d", report.Meta.SuspiciousCount)
		}
	})
}

// TestPipelineConsistency tests the optional title check stage.
func TestPipelineConsistency(t *testing.T) {
	t.Parallel()

	t.Run("runs with a title and parses the verdict", func(t *testing.T) {
		t.Parallel()

		fake := &fakeCompleter{
			extract:         map[string]string{"primary": factJSON(0.9)},
			summaryText:     "## あらすじ\n話の流れ。",
			consistencyText: "## 整合性チェック結果\n\n### 判定: ◯ 整合\n\n問題ありません。",
		}

		p := New(fake, NewSession(nil), "primary", WithTitle("義母の一言"))
		report, err := p.Run(context.Background(), testImages(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Consistency == nil {
			t.Fatal("expected consistency report")
		}
		if report.Consistency.Verdict != model.VerdictConsistent {
			t.Errorf("expected consistent verdict, got %q", report.Consistency.Verdict)
		}
		if report.Meta.Models.Consistency != "primary" {
			t.Errorf("expected consistency model recorded, got %q", report.Meta.Models.Consistency)
		}
	})

	t.Run("skipped without a title", func(t *testing.T) {
		t.Parallel()

		fake := &fakeCompleter{
			extract:     map[string]string{"primary": factJSON(0.9)},
			summaryText: "summary",
		}

		p := New(fake, NewSession(nil), "primary")
		report, err := p.Run(context.Background(), testImages(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Consistency != nil {
			t.Error("expected no consistency report without a title")
		}
		if got := fake.count("consistency"); got != 0 {
			t.Errorf("expected no consistency call, got %d", got)
		}
	})
}

// TestPipelineUsageAccounting tests the per-model ledger totals and the
// cost estimate in the report.
func TestPipelineUsageAccounting(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{
		extract: map[string]string{
			"primary":  factJSON(0.3),
			"fallback": factJSON(0.9),
		},
		summaryText: "summary",
	}

	p := New(fake, NewSession(nil), "primary",
		WithFallbackModel("fallback"),
		WithPricing(analysis.Pricing{InputPerMTok: 3, OutputPerMTok: 15}),
	)
	report, err := p.Run(context.Background(), testImages(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two primary extractions plus one summary on the primary tier, and
	// two escalations on the fallback tier, at 100 input tokens each.
	if got := report.Meta.ModelUsage["primary"].InputTokens; got != 300 {
		t.Errorf("expected 300 primary input tokens, got %d", got)
	}
	if got := report.Meta.ModelUsage["fallback"].InputTokens; got != 200 {
		t.Errorf("expected 200 fallback input tokens, got %d", got)
	}
	if !report.CostEstimated || report.EstimatedCost <= 0 {
		t.Errorf("expected a cost estimate, got %+v", report)
	}
}
