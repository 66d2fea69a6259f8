package analysis

import (
	"strings"
	"testing"

	"github.com/nao1215/comicscan/internal/model"
)

// TestParseExtraction tests decoding of extraction responses into tagged
// outcomes.
func TestParseExtraction(t *testing.T) {
	t.Parallel()

	t.Run("plain JSON object", func(t *testing.T) {
		t.Parallel()

		raw := `{"characters":[{"label":"姑","relation_terms":["義母"]}],"events":["嫌味を言う"],"confidence":0.8}`
		outcome := ParseExtraction(raw, 2, 3)

		facts, ok := outcome.(model.ValidFacts)
		if !ok {
			t.Fatalf("expected ValidFacts, got %T", outcome)
		}
		if facts.Fact.Episode != 2 || facts.Fact.Page != 3 {
			t.Errorf("episode/page not stamped: %+v", facts.Fact)
		}
		if len(facts.Fact.Characters) != 1 || facts.Fact.Characters[0].Label != "姑" {
			t.Errorf("unexpected characters: %+v", facts.Fact.Characters)
		}
		if facts.Fact.Confidence != 0.8 {
			t.Errorf("unexpected confidence: %f", facts.Fact.Confidence)
		}
	})

	t.Run("JSON wrapped in a code fence", func(t *testing.T) {
		t.Parallel()

		raw := "以下が結果です。\n```json\n{\"characters\":[],\"events\":[\"a\"],\"confidence\":0.5}\n```\n"
		if _, ok := ParseExtraction(raw, 1, 1).(model.ValidFacts); !ok {
			t.Error("expected fenced JSON to decode")
		}
	})

	t.Run("confidence clamped to unit interval", func(t *testing.T) {
		t.Parallel()

		outcome := ParseExtraction(`{"characters":[],"events":[],"confidence":1.7}`, 1, 1)
		facts, ok := outcome.(model.ValidFacts)
		if !ok {
			t.Fatalf("expected ValidFacts, got %T", outcome)
		}
		if facts.Fact.Confidence != 1 {
			t.Errorf("expected clamp to 1, got %f", facts.Fact.Confidence)
		}
	})

	t.Run("prose without JSON is malformed", func(t *testing.T) {
		t.Parallel()

		outcome := ParseExtraction("画像を分析できませんでした。", 1, 1)
		malformed, ok := outcome.(model.MalformedResponse)
		if !ok {
			t.Fatalf("expected MalformedResponse, got %T", outcome)
		}
		if malformed.RawText == "" {
			t.Error("expected raw text retained")
		}
	})

	t.Run("wrong field types are malformed", func(t *testing.T) {
		t.Parallel()

		raw := `{"characters":"姑","events":"嫌味","confidence":0.9}`
		if _, ok := ParseExtraction(raw, 1, 1).(model.MalformedResponse); !ok {
			t.Error("expected non-list fields to be rejected")
		}
	})
}

// TestExtractionPrompt tests the contextual title hint.
func TestExtractionPrompt(t *testing.T) {
	t.Parallel()

	withTitle := ExtractionPrompt(1, 2, "義母の一言")
	if !strings.Contains(withTitle, "義母の一言") {
		t.Error("expected title hint in prompt")
	}
	if !strings.Contains(withTitle, "第1話") || !strings.Contains(withTitle, "2ページ目") {
		t.Error("expected episode/page tag in prompt")
	}

	if strings.Contains(ExtractionPrompt(1, 2, ""), "記事タイトル") {
		t.Error("expected no title section without a title")
	}
}

// TestParseFlaggedIndices tests decoding of the verifier response.
func TestParseFlaggedIndices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []int
	}{
		{name: "plain object", raw: `{"flagged":[0,3]}`, want: []int{0, 3}},
		{name: "fenced object", raw: "```json\n{\"flagged\":[2]}\n```", want: []int{2}},
		{name: "empty list", raw: `{"flagged":[]}`, want: []int{}},
		{name: "prose only", raw: "問題ありません。", want: nil},
		{name: "broken json", raw: `{"flagged":[1,`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseFlaggedIndices(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

// TestParseConsistencyVerdict tests the three-way verdict extraction.
func TestParseConsistencyVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want model.ConsistencyVerdict
	}{
		{
			name: "consistent",
			text: "## 整合性チェック結果\n\n### 判定: ◯ 整合\n\n問題ありません。",
			want: model.VerdictConsistent,
		},
		{
			name: "minor doubt",
			text: "### 判定: △ 軽微な違和感\n\nタイトルがやや誇張気味です。",
			want: model.VerdictMinorDoubt,
		},
		{
			name: "inconsistent",
			text: "### 判定: ✕ 不整合\n\nタイトルの人物があらすじに登場しません。",
			want: model.VerdictInconsistent,
		},
		{
			name: "template echo is skipped",
			text: "### 判定: [◯ 整合 / △ 軽微な違和感 / ✕ 不整合]\n### 判定: ◯ 整合",
			want: model.VerdictConsistent,
		},
		{
			name: "verdict outside the marker line",
			text: "比較した結果、全体として不整合と判断します。",
			want: model.VerdictInconsistent,
		},
		{
			name: "no verdict at all",
			text: "比較できませんでした。",
			want: model.VerdictUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ParseConsistencyVerdict(tt.text); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
