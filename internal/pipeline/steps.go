package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/config"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/crawler"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/report"
)

// ErrNoCrawlResult is returned by steps that need the crawl step's output
// when it is missing from the run.
var ErrNoCrawlResult = errors.New("pipeline run has no crawl result")

// ErrNoChannel is returned by steps that need the assembled tree when it
// is missing from the run.
var ErrNoChannel = errors.New("pipeline run has no assembled channel")

// CrawlStep walks the site taxonomy and collects lesson references.
type CrawlStep struct {
	// spider performs the traversal.
	spider *crawler.Spider

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step around an existing spider.
func NewCrawlStep(spider *crawler.Spider, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		spider: spider,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	result, err := s.spider.Crawl(ctx)
	if err != nil {
		return err
	}

	run.Crawl = result
	s.logger.Info("crawl completed",
		"subjects", len(result.Subjects),
		"lessons", result.LessonCount,
		"skipped_no_zip", result.SkippedNoZip,
		"skipped_duplicate", result.SkippedDuplicate,
	)
	return nil
}

// PackageStep downloads and normalizes every crawled lesson's archive.
//
// Design decision: Packaging fans out through an errgroup with a limit
// rather than a worker pool because errgroup handles the concurrency and
// context plumbing correctly with far less code. Per-lesson failures are
// recorded in the run, not returned; one broken lesson should not discard
// a multi-hour crawl.
type PackageStep struct {
	// packager does the per-lesson work.
	packager *Packager

	// concurrency bounds the number of lessons in flight.
	concurrency int

	// logger for structured logging.
	logger *slog.Logger
}

// PackageStepOption configures a PackageStep.
type PackageStepOption func(*PackageStep)

// WithPackageConcurrency sets the number of lessons packaged in parallel.
func WithPackageConcurrency(n int) PackageStepOption {
	return func(s *PackageStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithPackageLogger sets a custom logger for the package step.
func WithPackageLogger(logger *slog.Logger) PackageStepOption {
	return func(s *PackageStep) {
		s.logger = logger
	}
}

// NewPackageStep creates a packaging step.
func NewPackageStep(packager *Packager, opts ...PackageStepOption) *PackageStep {
	s := &PackageStep{
		packager:    packager,
		concurrency: config.DefaultBatchSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PackageStep) Name() string {
	return "package"
}

// Do executes the packaging step.
func (s *PackageStep) Do(ctx context.Context, run *Run) error {
	if run.Crawl == nil {
		return ErrNoCrawlResult
	}

	lessons := collectLessons(run.Crawl)
	s.logger.Info("packaging lessons",
		"count", len(lessons),
		"concurrency", s.concurrency,
	)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, lesson := range lessons {
		lesson := lesson
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rec, err := s.packager.Package(ctx, lesson)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Context errors abort the whole step; anything else is a
				// per-lesson failure.
				if ctx.Err() != nil {
					return err
				}
				s.logger.Warn("failed to package lesson",
					"source_id", lesson.SourceID,
					"error", err,
				)
				run.Failures = append(run.Failures, model.LessonFailure{
					SourceID: lesson.SourceID,
					Title:    lesson.Title,
					Reason:   err.Error(),
				})
				return nil
			}
			run.Packages[lesson.SourceID] = rec
			return nil
		})
	}

	return g.Wait()
}

// collectLessons flattens the crawl result into one lesson list.
func collectLessons(result *crawler.Result) []model.Lesson {
	var lessons []model.Lesson
	for _, subject := range result.Subjects {
		for _, band := range subject.Bands {
			lessons = append(lessons, band.Lessons...)
		}
	}
	return lessons
}

// AssembleStep builds the channel tree from the crawl result and the
// packaged archives.
type AssembleStep struct {
	// channel is the channel-level metadata for the tree root.
	channel config.Channel

	// logger for structured logging.
	logger *slog.Logger
}

// AssembleStepOption configures an AssembleStep.
type AssembleStepOption func(*AssembleStep)

// WithAssembleLogger sets a custom logger for the assemble step.
func WithAssembleLogger(logger *slog.Logger) AssembleStepOption {
	return func(s *AssembleStep) {
		s.logger = logger
	}
}

// NewAssembleStep creates an assemble step.
func NewAssembleStep(channel config.Channel, opts ...AssembleStepOption) *AssembleStep {
	s := &AssembleStep{
		channel: channel,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AssembleStep) Name() string {
	return "assemble"
}

// Do executes the assemble step.
//
// The tree mirrors the site's menu: channel → subject topics → age-band
// topics → lesson nodes, with second-level menu entries nested under the
// preceding top-level subject. Lessons whose packaging failed are left
// out; age bands and subjects that end up empty are dropped, except
// placeholder subjects, which stay as bare topics.
func (s *AssembleStep) Do(_ context.Context, run *Run) error {
	if run.Crawl == nil {
		return ErrNoCrawlResult
	}

	root := model.NewChannel(
		config.ChannelSourceID,
		s.channel.Title,
		s.channel.Description,
		s.channel.Language,
	)
	root.Thumbnail = s.channel.Thumbnail
	root.SourceDomain = config.ChannelDomain

	// Top-level topics are collected before attaching to the root because
	// whether an empty one is dropped depends on the nested entries that
	// follow it.
	var tops []*model.ContentNode
	var placeholder []bool
	for _, subject := range run.Crawl.Subjects {
		topic := s.assembleSubject(subject, run)

		if subject.Subject.Nested && len(tops) > 0 {
			if len(topic.Children) > 0 || subject.Subject.URL == "" {
				tops[len(tops)-1].AddChild(topic)
			}
			continue
		}

		tops = append(tops, topic)
		placeholder = append(placeholder, subject.Subject.URL == "")
	}

	for i, topic := range tops {
		if len(topic.Children) > 0 || placeholder[i] {
			root.AddChild(topic)
		}
	}

	run.Channel = root
	s.logger.Info("assembled channel",
		"topics", root.CountByKind(model.KindTopic),
		"lessons", root.CountByKind(model.KindHTML5App),
	)
	return nil
}

// assembleSubject builds one subject topic. Empty topics are pruned by the
// caller, which knows whether later nested entries attach to them.
func (s *AssembleStep) assembleSubject(subject crawler.SubjectResult, run *Run) *model.ContentNode {
	topic := model.NewTopic(subjectSourceID(subject.Subject), subject.Subject.Title)

	for _, band := range subject.Bands {
		bandTopic := model.NewTopic(topic.SourceID+"/"+band.Band.Label, band.Band.Label)

		for _, lesson := range band.Lessons {
			rec, ok := run.Packages[lesson.SourceID]
			if !ok {
				continue
			}

			node := model.NewHTML5App(lesson.SourceID, lesson.Title)
			node.Author = lesson.Author
			node.Thumbnail = lesson.ThumbnailURL
			node.Language = s.channel.Language
			node.License = model.CCBYNCSA(s.channel.CopyrightHolder)
			node.ZipPath = rec.ZipPath
			node.ZipSHA256 = rec.ZipSHA256
			bandTopic.AddChild(node)
		}

		if len(bandTopic.Children) > 0 {
			topic.AddChild(bandTopic)
		}
	}

	return topic
}

// subjectSourceID derives a stable source ID for a subject topic: the last
// URL segment, or the title for placeholder subjects with no page.
func subjectSourceID(subject model.Subject) string {
	if subject.URL == "" {
		return subject.Title
	}
	id := subject.URL
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if id == "" {
		return subject.Title
	}
	return id
}

// ValidateStep checks the assembled tree against the importer's rules.
type ValidateStep struct {
	// logger for structured logging.
	logger *slog.Logger
}

// ValidateStepOption configures a ValidateStep.
type ValidateStepOption func(*ValidateStep)

// WithValidateLogger sets a custom logger for the validate step.
func WithValidateLogger(logger *slog.Logger) ValidateStepOption {
	return func(s *ValidateStep) {
		s.logger = logger
	}
}

// NewValidateStep creates a validation step.
func NewValidateStep(opts ...ValidateStepOption) *ValidateStep {
	s := &ValidateStep{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do executes the validation step.
func (s *ValidateStep) Do(_ context.Context, run *Run) error {
	if run.Channel == nil {
		return ErrNoChannel
	}

	if err := model.ValidateTree(run.Channel); err != nil {
		return fmt.Errorf("channel validation failed: %w", err)
	}

	s.logger.Info("channel validated", "source_id", run.Channel.SourceID)
	return nil
}

// ReportStep summarizes the run and writes the report.
type ReportStep struct {
	// writer formats and outputs the summary.
	writer report.Writer

	// logger for structured logging.
	logger *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a report step writing through the given writer.
func NewReportStep(writer report.Writer, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		writer: writer,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do executes the report step.
func (s *ReportStep) Do(_ context.Context, run *Run) error {
	if run.Channel == nil {
		return ErrNoChannel
	}

	summary := model.NewRunSummary(run.Channel)
	summary.Failures = run.Failures
	summary.Elapsed = summary.GeneratedAt.Sub(run.StartedAt)
	if run.Crawl != nil {
		summary.SkippedNoZip = run.Crawl.SkippedNoZip
		summary.SkippedDuplicate = run.Crawl.SkippedDuplicate
	}
	run.Summary = summary

	n, err := s.writer.Write(summary)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Debug("report written", "bytes", n)
	return nil
}
