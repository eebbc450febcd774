package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nao1215/sitecheck/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *PageRun) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *PageRun) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// newRun returns a PageRun for index.html without a session.
func newRun() *PageRun {
	return &PageRun{Page: model.NewPageResult("index.html", "http://127.0.0.1:4173/index.html", false)}
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(nil))
		if p.logger == nil {
			t.Fatal("expected default logger")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "alpha"})
	p.AddSteps(&mockStep{name: "beta"}, &mockStep{name: "gamma"})

	if p.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.StepCount())
	}
	names := p.StepNames()
	if names[0] != "alpha" || names[1] != "beta" || names[2] != "gamma" {
		t.Errorf("unexpected names: %v", names)
	}
}

// TestPipelineExecute tests step execution semantics.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)
		record := func(name string) func(context.Context, *PageRun) error {
			return func(context.Context, *PageRun) error {
				executionOrder = append(executionOrder, name)
				return nil
			}
		}

		p := New()
		p.AddSteps(
			&mockStep{name: "step-1", doFunc: record("step-1")},
			&mockStep{name: "step-2", doFunc: record("step-2")},
		)

		run := newRun()
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(executionOrder) != 2 || executionOrder[0] != "step-1" || executionOrder[1] != "step-2" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
		if len(run.Page.PerformedSteps) != 2 {
			t.Errorf("expected 2 performed steps, got %v", run.Page.PerformedSteps)
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		second := &mockStep{name: "should-not-run"}

		p := New()
		p.AddSteps(
			&mockStep{name: "failing-step", doFunc: func(context.Context, *PageRun) error { return expectedErr }},
			second,
		)

		run := newRun()
		err := p.Execute(context.Background(), run)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if run.Page.Error != expectedErr.Error() {
			t.Errorf("expected error to be recorded on the page, got %q", run.Page.Error)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "should-run"}
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "failing-step", doFunc: func(context.Context, *PageRun) error { return errors.New("step failed") }},
			second,
		)

		run := newRun()
		if err := p.Execute(context.Background(), run); err != nil {
			t.Errorf("expected nil error with continueOnError, got %v", err)
		}
		if second.callCount != 1 {
			t.Error("second step should have been called")
		}
		if run.Page.Error == "" {
			t.Error("expected step error on the page")
		}
	})

	t.Run("halt stops even with continueOnError", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "should-not-run"}
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "load", doFunc: func(context.Context, *PageRun) error {
				return fmt.Errorf("%w: not ready", ErrHaltPage)
			}},
			second,
		)

		run := newRun()
		err := p.Execute(context.Background(), run)
		if !errors.Is(err, ErrHaltPage) {
			t.Errorf("expected ErrHaltPage, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if run.Page.Error != "" {
			t.Errorf("halt should not be recorded as a step error, got %q", run.Page.Error)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New()
		p.AddStep(step)

		err := p.Execute(ctx, newRun())

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
	})
}

// TestMockStep tests the mockStep helper.
func TestMockStep(t *testing.T) {
	t.Parallel()

	step := &mockStep{name: "my-step"}
	_ = step.Do(context.Background(), nil)
	_ = step.Do(context.Background(), nil)

	if step.callCount != 2 {
		t.Errorf("expected call count 2, got %d", step.callCount)
	}
	if step.Name() != "my-step" {
		t.Errorf("expected name 'my-step', got %q", step.Name())
	}
}
