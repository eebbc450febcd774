package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/sitecheck/internal/browser"
	"github.com/nao1215/sitecheck/internal/check"
	"github.com/nao1215/sitecheck/internal/model"
)

// ErrHaltPage is wrapped by steps whose failure makes the remaining steps
// of the page meaningless, such as a page that never finished loading.
var ErrHaltPage = errors.New("page halted")

// PageRun is the state shared by the steps of one page.
type PageRun struct {
	// Page collects observations and violations.
	Page *model.PageResult

	// Session is the browser tab dedicated to the page.
	Session browser.Session

	// Policy is the ready condition used by the load step.
	Policy browser.ReadyPolicy

	// Headers are the page's override headers.
	Headers map[string]string
}

// Loaded returns the page as seen by the checkers.
func (r *PageRun) Loaded() check.LoadedPage {
	return check.LoadedPage{Name: r.Page.Name, Session: r.Session, Headers: r.Headers}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence on the same PageRun.
type Step interface {
	// Do executes the step. Findings are recorded on run.Page; the returned
	// error means the step itself failed.
	Do(ctx context.Context, run *PageRun) error

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
	// after one fails. Errors wrapping ErrHaltPage always stop.
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

// WithContinueOnError configures the pipeline to run the remaining steps
// after a step fails. The failure is still recorded on the page.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
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
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence, checking for cancellation before
// each one. It returns the first error that stopped the pipeline, or nil.
func (p *Pipeline) Execute(ctx context.Context, run *PageRun) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"page", run.Page.Name,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.DebugContext(ctx, "executing step",
			"step", step.Name(),
			"page", run.Page.Name,
		)

		run.Page.PerformedSteps = append(run.Page.PerformedSteps, step.Name())

		err := step.Do(ctx, run)
		if err == nil {
			continue
		}

		if errors.Is(err, ErrHaltPage) {
			p.logger.InfoContext(ctx, "page halted",
				"step", step.Name(),
				"page", run.Page.Name,
				"reason", err,
			)
			return err
		}

		p.logger.Error("step failed",
			"step", step.Name(),
			"page", run.Page.Name,
			"error", err,
		)
		run.Page.Error = err.Error()

		if !p.continueOnError || ctx.Err() != nil {
			return err
		}
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
