package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/crawler"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/database"
	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// Run accumulates the state of one chef run as it moves through the
// pipeline. Each step reads what earlier steps produced and fills in its
// own part.
type Run struct {
	// StartedAt is when pipeline execution began.
	StartedAt time.Time

	// Crawl is the taxonomy crawl result. Filled by the crawl step.
	Crawl *crawler.Result

	// Packages maps lesson source IDs to their packaged-archive records.
	// Filled by the package step.
	Packages map[string]*database.PackageRecord

	// Failures lists lessons that could not be packaged. Packaging
	// failures are not fatal; the lesson is dropped from the tree and
	// recorded here.
	Failures []model.LessonFailure

	// Channel is the assembled content tree. Filled by the assemble step.
	Channel *model.ContentNode

	// Summary is the run summary. Filled by the report step.
	Summary *model.RunSummary

	// PerformedSteps names the steps that ran, in order.
	PerformedSteps []string
}

// NewRun creates an empty Run stamped with the current time.
func NewRun() *Run {
	return &Run{
		StartedAt: time.Now(),
		Packages:  make(map[string]*database.PackageRecord),
	}
}

// Step is one stage of a chef run.
// Steps are executed in sequence, each receiving the accumulated Run.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; per-lesson problems
	// should be recorded in the run and return nil.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution even
// when a step fails.
//
// Design decision: The default is to stop on error because the steps feed
// each other; an assemble step without a crawl result can only produce an
// empty tree. The option exists for diagnostic runs where a partial report
// is better than none.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddSteps after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps handle their own timeouts and cancellation. This
// allows graceful cleanup between steps while still respecting
// cancellation.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step", "step", step.Name())

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name())
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
