// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/x/term"
	flag "github.com/spf13/pflag"

	"labkit/internal/lab"
	"labkit/internal/shell"
	"labkit/internal/ui"
	"labkit/internal/watch"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return &UsageError{Msg: err.Error()}
	}
	return nil
}

// labArgs reads "<lab> <part>..." and resolves the instructions path, which
// defaults to "Lab <N> Instructions.txt" in the working directory.
func labArgs(args []string, instructionsPath string) (lab.Options, error) {
	if len(args) < 2 {
		return lab.Options{}, usageErrorf("expected a lab number and at least one part number")
	}
	number, err := parseLabNumber(args[0])
	if err != nil {
		return lab.Options{}, err
	}
	parts, err := parsePartNumbers(args[1:])
	if err != nil {
		return lab.Options{}, err
	}
	if instructionsPath == "" {
		instructionsPath = lab.InstructionsFileName(number)
	}
	abs, err := filepath.Abs(instructionsPath)
	if err != nil {
		return lab.Options{}, err
	}
	return lab.Options{Number: number, PartNumbers: parts, InstructionsPath: abs}, nil
}

// mergeOptions overlays the lab-specific fields of spec onto the
// config-derived base.
func mergeOptions(base, spec lab.Options) lab.Options {
	base.Number = spec.Number
	base.PartNumbers = spec.PartNumbers
	base.InstructionsPath = spec.InstructionsPath
	return base
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("instructions file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("instructions file: %s is a directory", path)
	}
	return nil
}

func (e *Env) runNew(ctx context.Context, args []string) error {
	fs := newFlagSet("new")
	instructions := fs.StringP("instructions", "i", "", "instructions file to copy into the lab")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	spec, err := labArgs(fs.Args(), *instructions)
	if err != nil {
		return err
	}
	if err := requireFile(spec.InstructionsPath); err != nil {
		return err
	}

	return e.withSession(func(s *session) error {
		opts := mergeOptions(lab.OptionsFromConfig(s.cfg), spec)
		return e.runLab(ctx, s, opCreate, func(o ...lab.Option) (*lab.Lab, error) {
			return lab.Build(opts, o...)
		})
	})
}

func (e *Env) runFrom(ctx context.Context, args []string) error {
	fs := newFlagSet("from")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("expected exactly one instructions path")
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}

	return e.withSession(func(s *session) error {
		base := lab.OptionsFromConfig(s.cfg)
		return e.runLab(ctx, s, opCreate, func(o ...lab.Option) (*lab.Lab, error) {
			return lab.FromInstructions(path, base, o...)
		})
	})
}

func (e *Env) runPlan(ctx context.Context, args []string) error {
	fs := newFlagSet("plan")
	instructions := fs.StringP("instructions", "i", "", "instructions file to copy into the lab")
	from := fs.String("from", "", "read the lab and part numbers from this instructions file")
	showFiles := fs.Bool("files", false, "also print every generated file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	return e.withSession(func(s *session) error {
		var dry shell.DryRunner
		options := []lab.Option{lab.WithRunner(&dry), lab.WithLogger(s.logs.For("lab"))}
		base := lab.OptionsFromConfig(s.cfg)

		var l *lab.Lab
		var err error
		if *from != "" {
			if fs.NArg() != 0 {
				return usageErrorf("--from takes no positional arguments")
			}
			path, absErr := filepath.Abs(*from)
			if absErr != nil {
				return absErr
			}
			l, err = lab.FromInstructions(path, base, options...)
		} else {
			spec, specErr := labArgs(fs.Args(), *instructions)
			if specErr != nil {
				return specErr
			}
			l, err = lab.Build(mergeOptions(base, spec), options...)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(e.Stdout, s.styles.RenderTree(l.Tree(), e.width()))
		fmt.Fprintln(e.Stdout)
		fmt.Fprintln(e.Stdout, s.styles.RenderCommands("Commands", []string{
			l.CloneCommand().String(),
		}))
		fmt.Fprintln(e.Stdout)
		fmt.Fprintln(e.Stdout, s.styles.RenderCommands("Then", []string{
			"labkit submit " + l.Name + "   # " + l.CleanCommand().String() + " && " + l.PushCommand().String(),
			"labkit turnin " + l.Name + "   # " + l.TurninCommand().String(),
		}))

		if *showFiles {
			files, err := l.Render(ctx)
			if err != nil {
				return err
			}
			for _, path := range slices.Sorted(maps.Keys(files)) {
				fmt.Fprintf(e.Stdout, "\n%s\n%s\n", s.styles.TitleStyle().Render("==> "+path), files[path])
			}
		}
		return nil
	})
}

// width is the terminal width used to truncate plan output, or 0 when
// stdout is not a terminal.
func (e *Env) width() int {
	f, ok := e.Stdout.(*os.File)
	if !ok || !e.IsTerminal() {
		return 0
	}
	w, _, err := term.GetSize(f.Fd())
	if err != nil {
		return 0
	}
	return w
}

// openExisting parses "<lab>" and opens that lab from disk.
func openExisting(s *session, args []string) (builder, error) {
	if len(args) != 1 {
		return nil, usageErrorf("expected exactly one lab number")
	}
	number, err := parseLabNumber(args[0])
	if err != nil {
		return nil, err
	}
	base := lab.OptionsFromConfig(s.cfg)
	return func(o ...lab.Option) (*lab.Lab, error) {
		return lab.Open(number, base, o...)
	}, nil
}

func (e *Env) existingLabCommand(op labOp) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		fs := newFlagSet(op.name)
		if err := parseFlags(fs, args); err != nil {
			return err
		}
		return e.withSession(func(s *session) error {
			build, err := openExisting(s, fs.Args())
			if err != nil {
				return err
			}
			return e.runLab(ctx, s, op, build)
		})
	}
}

func (e *Env) runWatch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch")
	debounce := fs.Duration("debounce", 0, "quiet period before pushing (default from config)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	return e.withSession(func(s *session) error {
		build, err := openExisting(s, fs.Args())
		if err != nil {
			return err
		}
		l, err := build(
			lab.WithRunner(e.runner(s)),
			lab.WithLogger(s.logs.For("lab")),
			lab.WithObserver(timestampObserver{w: e.Stdout, styles: s.styles}),
		)
		if err != nil {
			return err
		}

		wait := s.cfg.Watch.Debounce
		if *debounce > 0 {
			wait = *debounce
		}
		w, err := watch.New(watch.Config{
			Root:     l.Dir.Path(),
			Debounce: wait,
			OnChange: l.Push,
			Logger:   s.logs.For("watch"),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(e.Stdout, "%s %s -> %s\n", s.styles.TitleStyle().Render("Watching"), l.Dir.Path(), l.RemoteAddress)
		fmt.Fprintln(e.Stdout, s.styles.HelpStyle().Render("ctrl+c: stop"))
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintf(e.Stdout, "%d pushes, %d failed\n", w.Triggers(), w.Failures())
		return nil
	})
}

// timestampObserver prefixes finished steps with the time, for long-running
// watch sessions.
type timestampObserver struct {
	w      io.Writer
	styles *ui.Styles
}

func (o timestampObserver) StepStarted(string) {}

func (o timestampObserver) StepFinished(name string, err error) {
	stamp := o.styles.SubtitleStyle().Render(time.Now().Format("15:04:05"))
	ui.PlainObserver{W: o.w, Styles: o.styles}.StepFinished(stamp+" "+name, err)
}
