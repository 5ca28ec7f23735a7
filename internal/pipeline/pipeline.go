// pattern: Imperative Shell

package pipeline

import (
	"context"
	"fmt"
	"time"

	"labkit/internal/logging"
)

// Step is one fallible unit of a lifecycle operation.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Observer is notified as steps start and finish.
type Observer interface {
	StepStarted(name string)
	StepFinished(name string, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStart  func(name string)
	OnFinish func(name string, err error)
}

func (o ObserverFuncs) StepStarted(name string) {
	if o.OnStart != nil {
		o.OnStart(name)
	}
}

func (o ObserverFuncs) StepFinished(name string, err error) {
	if o.OnFinish != nil {
		o.OnFinish(name, err)
	}
}

// Run executes steps in order and stops at the first failure. There is no
// retry and no rollback: whatever earlier steps did stays done.
func Run(ctx context.Context, steps []Step, obs Observer, logger *logging.ScopedLogger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}

		if obs != nil {
			obs.StepStarted(step.Name)
		}
		logger.Debug("step started", "step", step.Name)
		start := time.Now()

		err := step.Run(ctx)

		if obs != nil {
			obs.StepFinished(step.Name, err)
		}
		if err != nil {
			logger.Error("step failed", "step", step.Name, "elapsed", time.Since(start), "error", err)
			return &StepError{Step: step.Name, Err: err}
		}
		logger.Info("step finished", "step", step.Name, "elapsed", time.Since(start))
	}

	return nil
}

// Names lists the step names in order.
func Names(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
