// pattern: Imperative Shell

package lab

import (
	"context"
	"errors"
	"fmt"
	"os"

	"labkit/internal/fstree"
	"labkit/internal/lock"
	"labkit/internal/pipeline"
	"labkit/internal/shell"
)

// Step names, in the order Create and Submit run them.
const (
	StepClone      = "clone skeleton"
	StepReorganize = "reorganize"
	StepWriteFiles = "write lab files"
	StepClean      = "make clean"
	StepPush       = "push"
	StepPull       = "pull"
	StepTurnin     = "turnin"
)

// ErrEmptyClone means the cloned skeleton had no .git directory to relocate.
var ErrEmptyClone = errors.New("cloned skeleton has no .git directory")

// CreateSteps lists what Create does: clone, reorganize, write the lab root
// files, then one step per part in input order.
func (l *Lab) CreateSteps() []pipeline.Step {
	steps := []pipeline.Step{
		{Name: StepClone, Run: l.clone},
		{Name: StepReorganize, Run: l.reorganize},
		{Name: StepWriteFiles, Run: l.writeRootFiles},
	}
	for _, p := range l.Parts {
		steps = append(steps, pipeline.Step{
			Name: "create " + p.Name,
			Run:  createPart(p),
		})
	}
	return steps
}

// SubmitSteps lists what Submit does. The grading server's submit command is
// deliberately absent; see Turnin.
func (l *Lab) SubmitSteps() []pipeline.Step {
	return append(l.CleanSteps(), l.PushSteps()...)
}

// Create clones the skeleton into the lab directory, moves it under
// skeleton/ with its git metadata at the lab root, and writes every
// generated file. A failed step leaves whatever earlier steps produced.
func (l *Lab) Create(ctx context.Context) error {
	return l.runLocked(ctx, "create", l.CreateSteps())
}

// Submit cleans build products and pushes the lab to the remote.
func (l *Lab) Submit(ctx context.Context) error {
	return l.runLocked(ctx, "submit", l.SubmitSteps())
}

func (l *Lab) PushSteps() []pipeline.Step {
	return []pipeline.Step{{Name: StepPush, Run: l.run(l.PushCommand)}}
}

func (l *Lab) PullSteps() []pipeline.Step {
	return []pipeline.Step{{Name: StepPull, Run: l.run(l.PullCommand)}}
}

func (l *Lab) CleanSteps() []pipeline.Step {
	return []pipeline.Step{{Name: StepClean, Run: l.run(l.CleanCommand)}}
}

func (l *Lab) TurninSteps() []pipeline.Step {
	return []pipeline.Step{{Name: StepTurnin, Run: l.run(l.TurninCommand)}}
}

// Push mirrors the lab to the remote.
func (l *Lab) Push(ctx context.Context) error {
	return l.runLocked(ctx, "push", l.PushSteps())
}

// Pull mirrors the remote copy into the lab.
func (l *Lab) Pull(ctx context.Context) error {
	return l.runLocked(ctx, "pull", l.PullSteps())
}

// Clean runs make clean in the lab.
func (l *Lab) Clean(ctx context.Context) error {
	return l.runLocked(ctx, "clean", l.CleanSteps())
}

// Turnin runs the grading server's submit command over ssh. It is never
// part of Submit and must be asked for explicitly.
func (l *Lab) Turnin(ctx context.Context) error {
	return l.runLocked(ctx, "turnin", l.TurninSteps())
}

func (l *Lab) runLocked(ctx context.Context, op string, steps []pipeline.Step) error {
	logger := l.logger.With("lab", l.Name, "op", op)

	lk, err := lock.Acquire(l.ParentDir.Path(), l.Name)
	if err != nil {
		return err
	}
	defer func() { _ = lk.Release() }()

	logger.Info("starting", "steps", len(steps))
	if err := pipeline.Run(ctx, steps, l.observer, logger); err != nil {
		return fmt.Errorf("%s %s: %w", op, l.Name, err)
	}
	logger.Info("done")
	return nil
}

func (l *Lab) run(command func() shell.Command) func(context.Context) error {
	return func(ctx context.Context) error {
		return l.runner.Run(ctx, command())
	}
}

func (l *Lab) clone(ctx context.Context) error {
	if _, err := os.Stat(l.Dir.Path()); err == nil {
		return fmt.Errorf("%s already exists", l.Dir.Path())
	}
	return l.runner.Run(ctx, l.CloneCommand())
}

// reorganize turns <dir> (a fresh clone) into <dir>/skeleton and lifts the
// clone's .git to <dir>/.git.
func (l *Lab) reorganize(context.Context) error {
	dir := l.Dir.Path()
	temp := dir + "~"

	if err := fstree.Move(dir, temp); err != nil {
		return err
	}
	if err := l.Dir.Create(); err != nil {
		return err
	}
	if err := fstree.Move(temp, l.Files.Skeleton.Path()); err != nil {
		return err
	}

	clonedGit := l.Files.Skeleton.Dir(GitDir)
	if !clonedGit.Exists() {
		return ErrEmptyClone
	}
	return fstree.Move(clonedGit.Path(), l.Files.Git.Path())
}

func (l *Lab) writeRootFiles(ctx context.Context) error {
	if err := l.Files.Git.EnsureCreated(); err != nil {
		return err
	}
	if err := l.Files.Skeleton.EnsureCreated(); err != nil {
		return err
	}
	return fstree.CreateAll(ctx, l.Files.List()...)
}

func createPart(p Part) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := p.Dir.EnsureCreated(); err != nil {
			return err
		}
		return fstree.CreateAll(ctx, p.Files.List()...)
	}
}
