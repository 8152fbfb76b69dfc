// Package report formats the outcome of a chef run.
//
// Writers consume a model.RunSummary, never the raw content tree, so the
// formats stay decoupled from how the tree is assembled. Three formats are
// provided: human-readable text for the terminal, JSON for tooling, and
// Markdown for sharing run results in issues and docs.
package report
