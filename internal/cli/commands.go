// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"labkit/internal/config"
	"labkit/internal/lab"
	"labkit/internal/logging"
	"labkit/internal/pipeline"
	"labkit/internal/shell"
	"labkit/internal/ui"
)

// Env is what commands need from the process. Nil fields fall back to the
// real terminal, the real shell and a log file under the state directory.
type Env struct {
	Version    string
	ConfigDir  string
	ParentDir  string // overrides parent_dir from the config file
	Verbose    bool
	NoProgress bool

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	Runner     shell.Runner
	Logs       logging.LoggerProvider
	IsTerminal func() bool

	// ProgramOptions are passed to the progress view's tea.Program.
	ProgramOptions []tea.ProgramOption
}

func (e *Env) withDefaults() {
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.IsTerminal == nil {
		out := e.Stdout
		e.IsTerminal = func() bool {
			f, ok := out.(*os.File)
			return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
		}
	}
}

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(env Env) *App {
	env.withDefaults()
	e := &env

	app := NewApp(env.Version, env.Stderr)
	app.errorf = func(err error) string {
		styles := ui.NewStyles(config.DefaultTheme)
		return styles.ErrorStyle().Render("Error:") + " " + err.Error()
	}

	app.AddCommand(&Command{
		Name:    "new",
		Summary: "Clone the skeleton and scaffold a lab",
		Usage:   "Usage: labkit new [-i instructions] <lab> <part>...",
		Run:     e.runNew,
	})
	app.AddCommand(&Command{
		Name:    "from",
		Summary: "Scaffold the lab described by an instructions file",
		Usage:   "Usage: labkit from <instructions-path>",
		Run:     e.runFrom,
	})
	app.AddCommand(&Command{
		Name:    "plan",
		Summary: "Show what new would create, without doing it",
		Usage:   "Usage: labkit plan [-i instructions | --from instructions] [--files] [<lab> <part>...]",
		Run:     e.runPlan,
	})

	for _, op := range []labOp{opSubmit, opPush, opPull, opClean, opTurnin} {
		app.AddCommand(&Command{
			Name:    op.name,
			Summary: op.summary,
			Usage:   fmt.Sprintf("Usage: labkit %s <lab>", op.name),
			Run:     e.existingLabCommand(op),
		})
	}

	app.AddCommand(&Command{
		Name:    "watch",
		Summary: "Push the lab to the remote whenever files change",
		Usage:   "Usage: labkit watch [--debounce 2s] <lab>",
		Run:     e.runWatch,
	})

	configGroup := app.AddGroup("config", "Inspect or create the configuration file")
	RegisterConfigCommands(configGroup, e)

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: labkit version",
		Run: func(context.Context, []string) error {
			fmt.Fprintln(e.Stdout, env.Version)
			return nil
		},
	})

	return app
}

// session is the per-invocation state shared by lab commands.
type session struct {
	cfg    config.Config
	styles *ui.Styles
	logs   logging.LoggerProvider
	close  func()
}

func (e *Env) loadConfig() (config.Config, error) {
	if e.ConfigDir != "" {
		return config.LoadFromDir(e.ConfigDir)
	}
	return config.Load()
}

func (e *Env) openSession() (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		fmt.Fprintf(e.Stderr, "Warning: failed to load config: %v\n", err)
	}
	if e.ParentDir != "" {
		cfg.ParentDir = e.ParentDir
	}

	s := &session{cfg: cfg, styles: ui.NewStyles(cfg.Theme), close: func() {}}
	if e.Logs != nil {
		s.logs = e.Logs
		return s, nil
	}

	logCfg := logging.Config{
		FilePath:   cfg.ResolvedLogFile(),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Level:      cfg.LogLevel,
	}
	if e.Verbose {
		logCfg.Console = e.Stderr
		logCfg.Level = "debug"
	}
	manager, err := logging.NewManager(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	s.logs = manager
	s.close = func() { _ = manager.Close() }

	manager.For("app").Info("labkit starting", "version", e.Version, "parent_dir", cfg.ResolvedParentDir())
	return s, nil
}

func (e *Env) withSession(fn func(s *session) error) error {
	s, err := e.openSession()
	if err != nil {
		return err
	}
	defer s.close()

	logger := s.logs.For("app")
	err = fn(s)
	if err != nil {
		logger.Error("command failed", "error", err)
	}
	return err
}

func (e *Env) runner(s *session) shell.Runner {
	if e.Runner != nil {
		return e.Runner
	}
	r := shell.NewExecRunner(s.logs.For("shell"))
	r.Stdin = e.Stdin
	r.Stdout = e.Stdout
	return r
}

// useProgress reports whether to draw the bubbletea progress view.
// Verbose console logging would tear through it, so it is off then too.
func (e *Env) useProgress(op labOp) bool {
	return !e.NoProgress && !e.Verbose && !op.needsTerminal && e.IsTerminal()
}

// labOp is a lifecycle operation the CLI can run against a lab.
type labOp struct {
	name          string
	summary       string
	title         string
	done          string
	steps         func(*lab.Lab) []pipeline.Step
	run           func(*lab.Lab, context.Context) error
	needsTerminal bool
}

var (
	opCreate = labOp{
		name: "new", title: "Creating", done: "Created",
		steps: (*lab.Lab).CreateSteps, run: (*lab.Lab).Create,
	}
	opSubmit = labOp{
		name: "submit", summary: "Run make clean and push the lab to the remote",
		title: "Submitting", done: "Pushed",
		steps: (*lab.Lab).SubmitSteps, run: (*lab.Lab).Submit,
	}
	opPush = labOp{
		name: "push", summary: "Mirror the lab to the remote",
		title: "Pushing", done: "Pushed",
		steps: (*lab.Lab).PushSteps, run: (*lab.Lab).Push,
	}
	opPull = labOp{
		name: "pull", summary: "Mirror the remote copy into the lab",
		title: "Pulling", done: "Pulled",
		steps: (*lab.Lab).PullSteps, run: (*lab.Lab).Pull,
	}
	opClean = labOp{
		name: "clean", summary: "Run make clean in the lab",
		title: "Cleaning", done: "Cleaned",
		steps: (*lab.Lab).CleanSteps, run: (*lab.Lab).Clean,
	}
	opTurnin = labOp{
		name: "turnin", summary: "Run the grading server's submit command over ssh",
		title: "Turning in", done: "Turned in",
		steps: (*lab.Lab).TurninSteps, run: (*lab.Lab).Turnin,
		needsTerminal: true,
	}
)

// builder constructs the lab with extra options, so it can be rebuilt with
// the progress view's observer once the program is running.
type builder func(options ...lab.Option) (*lab.Lab, error)

func (e *Env) runLab(ctx context.Context, s *session, op labOp, build builder) error {
	progress := e.useProgress(op)
	base := []lab.Option{
		lab.WithRunner(e.runner(s)),
		lab.WithLogger(s.logs.For("lab")),
		lab.WithInteractive(!progress),
	}

	l, err := build(base...)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s %s", op.title, l.Name)

	if progress {
		err = ui.RunWithProgress(ctx, title, pipeline.Names(op.steps(l)), s.styles,
			func(ctx context.Context, obs pipeline.Observer) error {
				observed, err := build(append(base, lab.WithObserver(obs))...)
				if err != nil {
					return err
				}
				return op.run(observed, ctx)
			},
			e.ProgramOptions...,
		)
	} else {
		fmt.Fprintln(e.Stdout, s.styles.TitleStyle().Render(title))
		observed, buildErr := build(append(base, lab.WithObserver(ui.PlainObserver{W: e.Stdout, Styles: s.styles}))...)
		if buildErr != nil {
			return buildErr
		}
		err = op.run(observed, ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(e.Stdout, "%s %s %s\n", s.styles.SuccessStyle().Render(op.done), l.Name, s.styles.SubtitleStyle().Render(l.Dir.Path()))
	return nil
}

// parseLabNumber accepts "5" or "lab5".
func parseLabNumber(arg string) (int, error) {
	s := arg
	if len(s) > 3 && strings.EqualFold(s[:3], "lab") {
		s = s[3:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, usageErrorf("invalid lab number %q", arg)
	}
	return n, nil
}

// parsePartNumbers accepts "1" or "part1" for each part.
func parsePartNumbers(args []string) ([]int, error) {
	parts := make([]int, 0, len(args))
	for _, arg := range args {
		s := arg
		if len(s) > 4 && strings.EqualFold(s[:4], "part") {
			s = s[4:]
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, usageErrorf("invalid part number %q", arg)
		}
		parts = append(parts, n)
	}
	return parts, nil
}
