package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/comicscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, designed for saving
// next to the article or sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeSuspicious(md, report)
	w.writeConsistency(md, report)
	w.writeUsage(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table and any alerts.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Comicscan Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + report.URL + "`"},
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Images Analyzed", strconv.Itoa(report.Meta.TotalImages)},
		{"Suspicious", strconv.Itoa(report.Meta.SuspiciousCount)},
		{"Escalated", strconv.Itoa(report.Meta.EscalatedCount)},
	}
	if report.Title != "" {
		rows = append(rows[:1], append([][]string{{"Title", report.Title}}, rows[1:]...)...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Meta.Truncated {
		md.Warningf("%s", report.Meta.TruncationWarning)
		md.PlainText("")
	}
	if report.SummaryFailed {
		md.Cautionf("Summarization failed; this report carries diagnostics only.")
		md.PlainText("")
	}
}

// writeSummary embeds the narrative summary. The model already produces
// sectioned markdown, so the text is passed through as-is.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")
	md.PlainText(report.Summary)
	md.PlainText("")
}

// writeSuspicious writes the suspicion table.
func (w *MarkdownWriter) writeSuspicious(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Meta.Suspicious) == 0 {
		return
	}

	md.H2("Suspicious Images")
	md.PlainText("")

	rows := make([][]string, len(report.Meta.Suspicious))
	for i, record := range report.Meta.Suspicious {
		rows[i] = []string{
			strconv.Itoa(record.ImageIndex),
			strings.Join(record.Reasons, "; "),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Index", "Reasons"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeConsistency writes the optional title consistency section.
func (w *MarkdownWriter) writeConsistency(md *markdown.Markdown, report *model.RunReport) {
	if report.Consistency == nil {
		return
	}

	md.H2("Title Consistency")
	md.PlainText("")
	md.PlainTextf("Verdict: **%s** (%s)", report.Consistency.Verdict, report.Consistency.Model)
	md.PlainText("")
	md.Details("Full report", report.Consistency.Text)
	md.PlainText("")
}

// writeUsage writes the per-model usage table, a token distribution chart
// when more than one model served the run, and the cost estimate.
func (w *MarkdownWriter) writeUsage(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Meta.ModelUsage) == 0 {
		return
	}

	md.H2("Usage")
	md.PlainText("")

	models := sortedModels(report.Meta.ModelUsage)
	rows := make([][]string, 0, len(models))
	for _, id := range models {
		u := report.Meta.ModelUsage[id]
		rows = append(rows, []string{
			"`" + id + "`",
			strconv.FormatInt(u.InputTokens, 10),
			strconv.FormatInt(u.OutputTokens, 10),
			strconv.FormatInt(u.CacheCreationTokens, 10),
			strconv.FormatInt(u.CacheReadTokens, 10),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Model", "Input", "Output", "Cache Create", "Cache Read"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(models) > 1 {
		w.writeUsageChart(md, report, models)
	}

	if report.CostEstimated {
		md.PlainTextf("Estimated cost: **%.4f**", report.EstimatedCost)
		md.PlainText("")
	}
}

// writeUsageChart writes a mermaid pie chart of input token distribution
// across models.
func (w *MarkdownWriter) writeUsageChart(md *markdown.Markdown, report *model.RunReport, models []string) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Input Token Distribution"),
		piechart.WithShowData(true),
	)

	for _, id := range models {
		if u := report.Meta.ModelUsage[id]; u.InputTokens > 0 {
			chart.LabelAndIntValue(id, uint64(u.InputTokens)) //nolint:gosec // token counts are non-negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [comicscan](https://github.com/nao1215/comicscan)*")
}
