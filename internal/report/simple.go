package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeSubjects(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the channel-level run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      DESCARTES CHEF RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Channel:      %s\n", summary.ChannelTitle))
	sb.WriteString(fmt.Sprintf("Language:     %s\n", summary.Language))
	sb.WriteString(fmt.Sprintf("Generated:    %s\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:      %s\n", summary.Elapsed.Round(time.Second)))
	sb.WriteString(fmt.Sprintf("Topics:       %d\n", summary.TopicCount))
	sb.WriteString(fmt.Sprintf("Lessons:      %d\n", summary.LessonCount))
	sb.WriteString(fmt.Sprintf("No zip:       %d skipped\n", summary.SkippedNoZip))
	sb.WriteString(fmt.Sprintf("Duplicates:   %d skipped\n", summary.SkippedDuplicate))
	sb.WriteString(fmt.Sprintf("Failures:     %d\n", len(summary.Failures)))
	sb.WriteString("\n")
}

// writeSubjects writes the per-subject breakdown.
func (w *SimpleWriter) writeSubjects(sb *strings.Builder, summary *model.RunSummary) {
	if len(summary.Subjects) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUBJECTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.Subjects) == 0 {
		sb.WriteString("  No subjects collected\n\n")
		return
	}

	for _, subject := range summary.Subjects {
		sb.WriteString(fmt.Sprintf("  %s\n", subject.Title))
		for _, band := range subject.Bands {
			sb.WriteString(fmt.Sprintf("    %-14s %d lessons\n", band.Label, band.LessonCount))
		}
	}
	sb.WriteString("\n")
}

// writeFailures writes the packaging failures section.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.RunSummary) {
	if !summary.HasFailures() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PACKAGING FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if !summary.HasFailures() {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, f := range summary.Failures {
		sb.WriteString(fmt.Sprintf("  * %s (%s)\n", f.Title, f.SourceID))
		sb.WriteString(fmt.Sprintf("    Reason: %s\n", f.Reason))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by descartes-chef\n")
	sb.WriteString("https://github.com/learningequality/sushi-chef-proyecto-descartes\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
