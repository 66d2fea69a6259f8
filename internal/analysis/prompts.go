package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nao1215/comicscan/internal/model"
)

// PromptVersion tags every cache fingerprint. Bump it whenever a prompt
// template changes so stale cached extractions are never reused.
const PromptVersion = "2025-08.1"

// ExtractionPrompt builds the per-image structured fact extraction prompt.
// title, when non-empty, is offered as a contextual hint only; the prompt
// forbids using it to invent content.
//
// Prompts are Japanese because the target articles are Japanese comic
// sites; panel text legibility drives the self-reported confidence.
func ExtractionPrompt(episode, page int, title string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "この漫画のコマ画像（第%d話・%dページ目）を分析し、以下の形式のJSONだけを出力してください。説明文やコードブロックは不要です。\n\n", episode, page)
	b.WriteString(`{
  "characters": [{"label": "人物の名前または外見の説明", "relation_terms": ["関係を示す語（例: 姑、同僚）"], "evidence": "判断の根拠"}],
  "events": ["この画像で起きている出来事を順番に"],
  "quotes": ["重要なセリフ（判読できる場合のみ、原文のまま）"],
  "confidence": 0.0,
  "uncertainties": ["判読できなかった要素"]
}
`)
	b.WriteString("\nconfidenceは抽出結果全体への自己評価（0.0〜1.0）です。読めない文字や不明な点は推測で埋めず、「不明」と記録するか uncertainties に挙げてください。\n")

	if title != "" {
		fmt.Fprintf(&b, "\n参考情報として、記事タイトルは「%s」です。文脈のヒントとしてのみ使い、画像に無い内容の根拠にしないでください。\n", title)
	}
	return b.String()
}

// ParseExtraction decodes the raw response text of an extraction call into
// its tagged outcome. A decodable JSON object becomes ValidFacts with
// episode/page stamped and confidence clamped to [0, 1]; anything else
// becomes MalformedResponse carrying the raw text.
func ParseExtraction(raw string, episode, page int) model.ExtractionOutcome {
	payload, ok := extractJSONObject(raw)
	if !ok {
		return model.MalformedResponse{RawText: raw}
	}

	var fact model.ExtractionFact
	if err := json.Unmarshal([]byte(payload), &fact); err != nil {
		return model.MalformedResponse{RawText: raw}
	}

	fact.Episode = episode
	fact.Page = page
	if fact.Confidence < 0 {
		fact.Confidence = 0
	} else if fact.Confidence > 1 {
		fact.Confidence = 1
	}
	return model.ValidFacts{Fact: fact}
}

// extractJSONObject pulls the outermost JSON object out of a response that
// may wrap it in prose or a code fence.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// VerificationPrompt builds the text-only cross-check over the full fact
// brief. The verifier sees no images; it judges internal consistency and
// evidential support only.
func VerificationPrompt(brief string) string {
	var b strings.Builder

	b.WriteString("以下は漫画記事の各画像から抽出した事実の一覧です（0始まりのindex付き、発見順）。\n\n")
	b.WriteString(brief)
	b.WriteString("\n\n一覧を通して読み、次のいずれかに当てはまる項目のindexを挙げてください：\n")
	b.WriteString("- 前後の項目と矛盾している\n- 内容が紋切り型で、画像固有の情報が無いように見える\n- evidenceが主張を裏付けていない\n")
	b.WriteString("\n{\"flagged\": [index, ...]} の形式のJSONだけを出力してください。問題が無ければ {\"flagged\": []} としてください。\n")
	return b.String()
}

// ParseFlaggedIndices decodes the verifier's response. An undecodable
// response flags nothing; verification is advisory and never degrades the
// run on its own.
func ParseFlaggedIndices(raw string) []int {
	payload, ok := extractJSONObject(raw)
	if !ok {
		return nil
	}

	var flagged struct {
		Flagged []int `json:"flagged"`
	}
	if err := json.Unmarshal([]byte(payload), &flagged); err != nil {
		return nil
	}
	return flagged.Flagged
}

// SummaryPrompt builds the aggregation prompt over the serialized fact
// brief. The section structure follows the report the tool prints.
func SummaryPrompt(brief string) string {
	var b strings.Builder

	b.WriteString("以下は漫画記事の各画像から抽出した事実の一覧です（発見順）。この一覧だけを根拠に、マンガのあらすじをまとめてください。\n\n")
	b.WriteString(brief)
	b.WriteString("\n\n以下の形式で簡潔にまとめてください：\n")
	b.WriteString(`
## あらすじ
（ストーリーの流れを3〜5文で説明）

## 登場人物
（主要キャラクターと関係性を箇条書きで）

## 重要な出来事
（起きた順に箇条書きで）

## 未解決の点
（読み取れなかった点や、関係が特定できなかった点を明示）
`)
	b.WriteString("\n一覧に無い内容を創作しないでください。人物の関係が特定できない場合は、推測せずその旨を明記してください。重要なセリフがある場合は含めてください。日本語で回答してください。\n")
	return b.String()
}

// ConsistencyPrompt builds the title-vs-summary rubric check. The four
// dimensions and the three-way verdict markers are fixed; the verdict
// parser depends on them.
func ConsistencyPrompt(title, summary string) string {
	return fmt.Sprintf(`以下の漫画記事の「タイトル」と「あらすじ」を比較して、整合性をチェックしてください。

【タイトル】
%s

【あらすじ】
%s

---

以下の観点でチェックし、結果を報告してください：

## 整合性チェック結果

### 判定: [◯ 整合 / △ 軽微な違和感 / ✕ 不整合]

### チェック項目

1. **テーマの一致**: タイトルが示すテーマとあらすじの内容は一致していますか？
2. **登場人物**: タイトルに人物や関係性が含まれる場合、あらすじと一致していますか？
3. **結末・教訓**: タイトルが示唆する結末や教訓は、あらすじに反映されていますか？
4. **誇大表現**: タイトルが内容を誇張しすぎていませんか？

### 詳細コメント
（違和感がある場合は具体的に指摘してください）

### 改善提案
（タイトルの改善案があれば提案してください）`, title, summary)
}

// ParseConsistencyVerdict extracts the three-way verdict from a rubric
// report. It prefers the 判定 line; failing that it scans the whole text.
// Marker precedence runs worst-first because 整合 is a substring of 不整合.
func ParseConsistencyVerdict(text string) model.ConsistencyVerdict {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "判定") {
			continue
		}
		// A line listing every option is the template echoed back, not a verdict.
		if strings.Contains(line, "◯") && strings.Contains(line, "✕") {
			continue
		}
		if v := verdictIn(line); v != model.VerdictUnknown {
			return v
		}
	}
	return verdictIn(text)
}

func verdictIn(s string) model.ConsistencyVerdict {
	switch {
	case strings.Contains(s, "✕") || strings.Contains(s, "不整合"):
		return model.VerdictInconsistent
	case strings.Contains(s, "△") || strings.Contains(s, "軽微な違和感"):
		return model.VerdictMinorDoubt
	case strings.Contains(s, "◯") || strings.Contains(s, "〇") || strings.Contains(s, "整合"):
		return model.VerdictConsistent
	default:
		return model.VerdictUnknown
	}
}
