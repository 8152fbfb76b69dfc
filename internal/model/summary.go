package model

import (
	"time"
)

// RunSummary is the reportable outcome of one chef run: the shape of the
// assembled tree plus the crawl and packaging counters. Report writers
// format this, never the raw tree.
type RunSummary struct {
	// ChannelTitle is the assembled channel's title.
	ChannelTitle string `json:"channel_title"`

	// Language is the channel's BCP 47 language code.
	Language string `json:"language"`

	// GeneratedAt is the time the summary was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Subjects lists each subject with its per-band lesson counts, in
	// tree order.
	Subjects []SubjectSummary `json:"subjects"`

	// TopicCount is the number of folder nodes in the tree.
	TopicCount int `json:"topic_count"`

	// LessonCount is the number of lesson nodes in the tree.
	LessonCount int `json:"lesson_count"`

	// SkippedNoZip counts lessons skipped because their page linked no
	// zip package.
	SkippedNoZip int `json:"skipped_no_zip"`

	// SkippedDuplicate counts lessons dropped because their source ID was
	// already collected under another age band.
	SkippedDuplicate int `json:"skipped_duplicate"`

	// Failures lists lessons that could not be packaged.
	Failures []LessonFailure `json:"failures,omitempty"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// SubjectSummary is one subject's per-band breakdown.
type SubjectSummary struct {
	// Title is the subject topic title.
	Title string `json:"title"`

	// Bands lists the subject's age bands with their lesson counts.
	Bands []BandSummary `json:"bands,omitempty"`
}

// BandSummary is one age band's lesson count within a subject.
type BandSummary struct {
	// Label is the age-band topic title.
	Label string `json:"label"`

	// LessonCount is the number of lesson nodes in the band.
	LessonCount int `json:"lesson_count"`
}

// LessonFailure records one lesson that was crawled but not packaged.
type LessonFailure struct {
	// SourceID identifies the lesson.
	SourceID string `json:"source_id"`

	// Title is the lesson title.
	Title string `json:"title"`

	// Reason is the failure message.
	Reason string `json:"reason"`
}

// NewRunSummary derives a summary from an assembled channel tree.
// Crawl counters and failures are filled in by the caller; this only reads
// the tree shape.
func NewRunSummary(root *ContentNode) *RunSummary {
	s := &RunSummary{
		ChannelTitle: root.Title,
		Language:     root.Language,
		GeneratedAt:  time.Now(),
		TopicCount:   root.CountByKind(KindTopic),
		LessonCount:  root.CountByKind(KindHTML5App),
	}

	for _, subject := range root.Children {
		ss := SubjectSummary{Title: subject.Title}
		for _, band := range subject.Children {
			if band.Kind != KindTopic {
				continue
			}
			ss.Bands = append(ss.Bands, BandSummary{
				Label:       band.Title,
				LessonCount: band.CountByKind(KindHTML5App),
			})
		}
		s.Subjects = append(s.Subjects, ss)
	}

	return s
}

// TotalPackaged returns the number of lessons that made it into the tree
// with a packaged archive.
func (s *RunSummary) TotalPackaged() int {
	return s.LessonCount
}

// HasFailures reports whether any lesson failed to package.
func (s *RunSummary) HasFailures() bool {
	return len(s.Failures) > 0
}
