package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/sitecheck/internal/check"
	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// Step names.
const (
	StepLoad      = "load"
	StepResources = "resources"
	StepStyles    = "styles"
)

// LoadStep navigates the session to the page and waits for the ready
// condition. A page that does not become ready gets a load_timeout
// violation and halts.
type LoadStep struct {
	// printer renders the violation message.
	printer *locale.Printer

	// logger for structured logging.
	logger *slog.Logger
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// NewLoadStep creates a new load step.
func NewLoadStep(printer *locale.Printer, opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{
		printer: printer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return StepLoad
}

// Do executes the load step.
func (s *LoadStep) Do(ctx context.Context, run *PageRun) error {
	err := run.Session.Goto(ctx, run.Page.URL, run.Policy)
	if err == nil {
		if current := run.Session.URL(); current != "" {
			run.Page.URL = current
		}
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	loadErr := &model.LoadTimeoutError{
		Page:      run.Page.Name,
		URL:       run.Page.URL,
		WaitUntil: string(run.Policy.WaitUntil),
		Timeout:   run.Policy.Timeout,
		Err:       err,
	}
	s.logger.WarnContext(ctx, "page not ready", "page", run.Page.Name, "url", run.Page.URL, "error", err)

	run.Page.AddViolation(model.Violation{
		Kind:     model.KindLoadTimeout,
		Page:     run.Page.Name,
		URL:      run.Page.URL,
		Observed: string(run.Policy.WaitUntil),
		Message: s.printer.Sprintf(locale.MsgPageNotReady,
			run.Page.Name, run.Policy.WaitUntil, run.Policy.Timeout, err.Error()),
	})
	return fmt.Errorf("%w: %w", ErrHaltPage, loadErr)
}

// ResourceStep checks image loading and reachability.
type ResourceStep struct {
	checker *check.ResourceChecker
}

// NewResourceStep creates a new resource step.
func NewResourceStep(checker *check.ResourceChecker) *ResourceStep {
	return &ResourceStep{checker: checker}
}

// Name returns the step name.
func (s *ResourceStep) Name() string {
	return StepResources
}

// Do executes the resource step.
func (s *ResourceStep) Do(ctx context.Context, run *PageRun) error {
	result, err := s.checker.CheckPage(ctx, run.Loaded())
	if result != nil {
		run.Page.Images = result.Images
		run.Page.Resources = result.Resources
		run.Page.AddViolations(result.Violations)
	}
	return err
}

// StyleStep audits module image backgrounds.
type StyleStep struct {
	auditor *check.StyleAuditor
}

// NewStyleStep creates a new style step.
func NewStyleStep(auditor *check.StyleAuditor) *StyleStep {
	return &StyleStep{auditor: auditor}
}

// Name returns the step name.
func (s *StyleStep) Name() string {
	return StepStyles
}

// Do executes the style step.
func (s *StyleStep) Do(ctx context.Context, run *PageRun) error {
	result, err := s.auditor.AuditModulePage(ctx, run.Loaded())
	if err != nil {
		return err
	}
	if result != nil {
		run.Page.Styles = result.Styles
		run.Page.AddViolations(result.Violations)
	}
	return nil
}
