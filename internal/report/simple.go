package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/comicscan/internal/model"
)

// SimpleWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-image fact dump and the brief preview.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with per-image details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeSuspicious(&sb, report)
	w.writeConsistency(&sb, report)
	w.writeUsage(&sb, report)
	if w.verbose {
		w.writeFacts(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the run information block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                         COMICSCAN REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "URL:        %s\n", report.URL)
	if report.Title != "" {
		fmt.Fprintf(sb, "Title:      %s\n", report.Title)
	}
	fmt.Fprintf(sb, "Generated:  %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Images:     %d analyzed, %d suspicious, %d escalated\n",
		report.Meta.TotalImages, report.Meta.SuspiciousCount, report.Meta.EscalatedCount)

	if report.Meta.Truncated {
		fmt.Fprintf(sb, "Warning:    %s\n", report.Meta.TruncationWarning)
	}
	if report.SummaryFailed {
		sb.WriteString("Status:     SUMMARY FAILED (diagnostics only)\n")
	} else {
		sb.WriteString("Status:     Complete\n")
	}
	sb.WriteString("\n")
}

// writeSummary writes the narrative summary (or its failure text).
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RunReport) {
	section(sb, "SUMMARY")
	sb.WriteString(report.Summary)
	sb.WriteString("\n\n")
}

// writeSuspicious writes the suspicion records with their reasons.
func (w *SimpleWriter) writeSuspicious(sb *strings.Builder, report *model.RunReport) {
	if len(report.Meta.Suspicious) == 0 {
		return
	}

	section(sb, "SUSPICIOUS IMAGES")
	for _, record := range report.Meta.Suspicious {
		fmt.Fprintf(sb, "  [%d]\n", record.ImageIndex)
		for _, reason := range record.Reasons {
			fmt.Fprintf(sb, "      - %s\n", reason)
		}
	}
	sb.WriteString("\n")
}

// writeConsistency writes the optional title consistency report.
func (w *SimpleWriter) writeConsistency(sb *strings.Builder, report *model.RunReport) {
	if report.Consistency == nil {
		return
	}

	section(sb, "TITLE CONSISTENCY")
	fmt.Fprintf(sb, "Verdict: %s (%s)\n\n", report.Consistency.Verdict, report.Consistency.Model)
	sb.WriteString(report.Consistency.Text)
	sb.WriteString("\n\n")
}

// writeUsage writes the per-model usage totals and the cost estimate.
func (w *SimpleWriter) writeUsage(sb *strings.Builder, report *model.RunReport) {
	if len(report.Meta.ModelUsage) == 0 {
		return
	}

	section(sb, "USAGE")
	for _, modelID := range sortedModels(report.Meta.ModelUsage) {
		u := report.Meta.ModelUsage[modelID]
		fmt.Fprintf(sb, "  %s: in=%d out=%d cache_create=%d cache_read=%d\n",
			modelID, u.InputTokens, u.OutputTokens, u.CacheCreationTokens, u.CacheReadTokens)
	}
	if report.CostEstimated {
		fmt.Fprintf(sb, "\n  Estimated cost: %.4f\n", report.EstimatedCost)
	}
	sb.WriteString("\n")
}

// writeFacts dumps the final per-image facts. Verbose only.
func (w *SimpleWriter) writeFacts(sb *strings.Builder, report *model.RunReport) {
	if len(report.Facts) == 0 {
		return
	}

	section(sb, "PER-IMAGE FACTS")
	for i, fact := range report.Facts {
		fmt.Fprintf(sb, "  [%d] episode %d page %d confidence %.2f (%s)\n",
			i, fact.Episode, fact.Page, fact.Confidence, fact.ProvenanceModel)
		for _, c := range fact.Characters {
			fmt.Fprintf(sb, "      character: %s\n", c.Label)
		}
		for _, e := range fact.Events {
			fmt.Fprintf(sb, "      event: %s\n", e)
		}
	}
	if report.Meta.BriefPreview != "" {
		fmt.Fprintf(sb, "\n  Brief preview: %s\n", report.Meta.BriefPreview)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by comicscan\n")
	sb.WriteString("https://github.com/nao1215/comicscan\n")
	rule(sb, "=")
}

// sortedModels returns the usage map's keys in stable order.
func sortedModels(usage map[string]model.Usage) []string {
	models := make([]string, 0, len(usage))
	for id := range usage {
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}
