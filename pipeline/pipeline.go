package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step represents a discrete stage of a sync run.
// Every step must be idempotent so a failed run can be retried from it.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

// StepFunc adapts a plain function to a Step.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// Pipeline orchestrates a fixed list of steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps, logger: slog.Default()}
}

// WithLogger returns the pipeline logging through l.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	p.logger = l
	return p
}

// Names lists the step names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes every step in order.
func (p *Pipeline) Run(ctx context.Context) error {
	if len(p.steps) == 0 {
		return nil
	}
	return p.RunFrom(ctx, 0)
}

// RunFrom executes steps starting at the provided index.
// If any step returns an error, execution stops and the error bubbles up.
func (p *Pipeline) RunFrom(ctx context.Context, start int) error {
	if start < 0 || start >= len(p.steps) {
		return fmt.Errorf("start index %d out of range", start)
	}

	for i := start; i < len(p.steps); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := p.steps[i]
		p.logger.Info("running step",
			slog.String("step", step.Name()),
			slog.Int("current", i+1),
			slog.Int("total", len(p.steps)))
		t0 := time.Now()

		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("step %s failed after %s: %w", step.Name(), time.Since(t0).Truncate(time.Millisecond), err)
		}

		p.logger.Info("completed step",
			slog.String("step", step.Name()),
			slog.Duration("duration", time.Since(t0).Truncate(time.Millisecond)))
	}

	return nil
}

// FindIndex returns the position of a step by name or -1 if not found.
func (p *Pipeline) FindIndex(name string) int {
	for i, s := range p.steps {
		if s.Name() == name {
			return i
		}
	}
	return -1
}
