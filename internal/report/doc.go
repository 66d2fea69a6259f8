// Package report renders a finished run in different output formats.
//
// Three writers cover the output surface:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown for saving next to the article
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
package report
