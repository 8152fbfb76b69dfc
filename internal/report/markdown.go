package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format.
// This format is designed for documentation and sharing.
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
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeSubjects(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the channel-level run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("Descartes Chef Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Channel", summary.ChannelTitle},
			{"Language", "`" + summary.Language + "`"},
			{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Topics", strconv.Itoa(summary.TopicCount)},
			{"Lessons", strconv.Itoa(summary.LessonCount)},
			{"Skipped (no zip)", strconv.Itoa(summary.SkippedNoZip)},
			{"Skipped (duplicate)", strconv.Itoa(summary.SkippedDuplicate)},
			{"Packaging failures", strconv.Itoa(len(summary.Failures))},
		},
	})
	md.PlainText("")

	if summary.HasFailures() {
		md.Warningf(
			"%d lesson(s) could not be packaged and were left out of the tree.",
			len(summary.Failures),
		)
	} else {
		md.Tip("All crawled lessons were packaged successfully.")
	}
	md.PlainText("")
}

// writeSubjects writes the per-subject breakdown with a lesson
// distribution chart.
func (w *MarkdownWriter) writeSubjects(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Subjects")
	md.PlainText("")

	if len(summary.Subjects) == 0 {
		md.PlainText("No subjects collected.")
		md.PlainText("")
		return
	}

	var rows [][]string
	for _, subject := range summary.Subjects {
		if len(subject.Bands) == 0 {
			rows = append(rows, []string{subject.Title, "-", "0"})
			continue
		}
		for _, band := range subject.Bands {
			rows = append(rows, []string{subject.Title, band.Label, strconv.Itoa(band.LessonCount)})
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Subject", "Age band", "Lessons"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, summary)
}

// writePieChart writes a mermaid pie chart of lessons per subject.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Lessons per subject"),
		piechart.WithShowData(true),
	)

	charted := false
	for _, subject := range summary.Subjects {
		count := 0
		for _, band := range subject.Bands {
			count += band.LessonCount
		}
		if count > 0 {
			chart.LabelAndIntValue(subject.Title, uint64(count))
			charted = true
		}
	}
	if !charted {
		return
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes the packaging failures section.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Packaging Failures")
	md.PlainText("")

	if !summary.HasFailures() {
		md.PlainText("No packaging failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Failures))
	for i, f := range summary.Failures {
		rows[i] = []string{f.Title, "`" + f.SourceID + "`", truncateString(f.Reason, 80)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Lesson", "Source ID", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [descartes-chef](https://github.com/learningequality/sushi-chef-proyecto-descartes)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
