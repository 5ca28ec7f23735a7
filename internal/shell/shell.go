// pattern: Imperative Shell

package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/creack/pty"
	"github.com/muesli/cancelreader"

	"labkit/internal/logging"
)

// tailLines is how much trailing output an ExitError keeps.
const tailLines = 20

// Command is a shell command line and where to run it.
type Command struct {
	Line        string
	Dir         string // empty means the current directory
	Interactive bool   // attach to the terminal through a PTY (ssh/git may prompt)
}

func (c Command) String() string {
	if c.Dir == "" {
		return c.Line
	}
	return fmt.Sprintf("(cd %s && %s)", c.Dir, c.Line)
}

// Runner executes commands and waits for them to finish.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) error

func (f RunnerFunc) Run(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// ExitError is returned when a command exits non-zero.
type ExitError struct {
	Line   string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", e.Line, e.Code)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// ExecRunner runs command lines through a POSIX shell.
type ExecRunner struct {
	Shell  string // defaults to "sh"
	Stdin  *os.File
	Stdout io.Writer
	logger *logging.ScopedLogger
}

// NewExecRunner returns a runner wired to the process's terminal.
func NewExecRunner(logger *logging.ScopedLogger) *ExecRunner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ExecRunner{
		Shell:  "sh",
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		logger: logger,
	}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", c.Line)
	cmd.Dir = c.Dir

	r.logger.Info("running command", "command", c.Line, "dir", c.Dir, "interactive", c.Interactive)

	var err error
	var output string
	if c.Interactive && r.Stdin != nil && term.IsTerminal(r.Stdin.Fd()) {
		err = r.runPTY(cmd)
	} else {
		output, err = r.runCaptured(cmd)
	}

	if err != nil && ctx.Err() != nil {
		r.logger.Warn("command cancelled", "command", c.Line)
		return fmt.Errorf("running %q: %w", c.Line, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Warn("command failed", "command", c.Line, "exit_code", exitErr.ExitCode())
			return &ExitError{Line: c.Line, Code: exitErr.ExitCode(), Output: output}
		}
		r.logger.Error("command did not run", "command", c.Line, "error", err)
		return fmt.Errorf("running %q: %w", c.Line, err)
	}

	r.logger.Info("command finished", "command", c.Line)
	return nil
}

// runCaptured streams stdout and stderr into the logger line by line and
// keeps the tail for error reports.
func (r *ExecRunner) runCaptured(cmd *exec.Cmd) (string, error) {
	// Own process group so cancellation also reaches grandchildren
	// (ssh under rsync, sleep under sh) that hold the pipes open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", err
	}

	tail := &tailBuffer{max: tailLines}
	var wg sync.WaitGroup
	wg.Add(2)
	scan := func(rd io.Reader, stream string) {
		defer wg.Done()
		scanner := bufio.NewScanner(rd)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			r.logger.Debug(line, "stream", stream)
		}
	}
	go scan(stdout, "stdout")
	go scan(stderr, "stderr")

	wg.Wait()
	err = cmd.Wait()
	return tail.String(), err
}

// runPTY attaches the command to a pseudo-terminal so password and host-key
// prompts reach the user.
// Stdin is read through a cancelable reader so the copy stops when the
// command exits instead of eating the next keystroke.
func (r *ExecRunner) runPTY(cmd *exec.Cmd) error {
	in, err := cancelreader.NewReader(r.Stdin)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ptmx.Close() }()

	_ = pty.InheritSize(r.Stdin, ptmx)

	state, err := term.MakeRaw(r.Stdin.Fd())
	if err == nil {
		defer func() { _ = term.Restore(r.Stdin.Fd(), state) }()
	}

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = io.Copy(ptmx, in)
	}()
	_, _ = io.Copy(r.Stdout, ptmx)

	err = cmd.Wait()
	in.Cancel()
	<-copied
	return err
}

type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.lines, "\n"))
}

// DryRunner records commands instead of running them.
type DryRunner struct {
	mu       sync.Mutex
	Commands []Command
	// Fail, when set, is consulted for each command; a non-nil result is
	// returned as that command's error.
	Fail func(Command) error
}

func (d *DryRunner) Run(_ context.Context, c Command) error {
	d.mu.Lock()
	d.Commands = append(d.Commands, c)
	d.mu.Unlock()
	if d.Fail != nil {
		return d.Fail(c)
	}
	return nil
}

// Lines returns the recorded command lines in order.
func (d *DryRunner) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := make([]string, len(d.Commands))
	for i, c := range d.Commands {
		lines[i] = c.Line
	}
	return lines
}
