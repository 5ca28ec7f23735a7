// pattern: Imperative Shell
package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/go-cmp/cmp"

	"labkit/internal/config"
	"labkit/internal/logging"
	"labkit/internal/shell"
)

type harness struct {
	env      Env
	parent   string
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	logs     *logging.TestLogManager
	mu       sync.Mutex
	commands []shell.Command
}

// newHarness builds an Env with a fake runner that emulates git clone and
// records everything else.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		parent: t.TempDir(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		logs:   logging.NewTestLogManager(),
	}
	h.env = Env{
		Version:    "1.2.3",
		ConfigDir:  t.TempDir(),
		ParentDir:  h.parent,
		Stdout:     h.stdout,
		Stderr:     h.stderr,
		Logs:       h.logs,
		IsTerminal: func() bool { return false },
		Runner: shell.RunnerFunc(func(_ context.Context, c shell.Command) error {
			h.mu.Lock()
			h.commands = append(h.commands, c)
			h.mu.Unlock()
			if strings.HasPrefix(c.Line, "git clone ") {
				fields := strings.Fields(c.Line)
				dir := fields[len(fields)-1]
				if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	return h
}

func (h *harness) run(args ...string) int {
	return BuildApp(h.env).Execute(context.Background(), args)
}

func (h *harness) lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, c := range h.commands {
		out = append(out, c.Line)
	}
	return out
}

func writeInstructions(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	if code := h.run("version"); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if h.stdout.String() != "1.2.3\n" {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestNew_CreatesLab(t *testing.T) {
	h := newHarness(t)
	ins := writeInstructions(t, t.TempDir(), "lab5.txt", "Lab 5\nPart 1\nPart 2\n")

	if code := h.run("new", "-i", ins, "lab5", "1", "part2"); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, h.stderr.String())
	}

	dir := filepath.Join(h.parent, "lab5")
	for _, rel := range []string{"Makefile", "Lab 5 Instructions.txt", ".git", "skeleton", "part1/Makefile", "part2/CMakeLists.txt"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	out := ansi.Strip(h.stdout.String())
	for _, want := range []string{"Creating lab5", "✓ clone skeleton", "✓ create part2", "Created lab5"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestNew_MissingInstructions(t *testing.T) {
	h := newHarness(t)
	if code := h.run("new", "-i", filepath.Join(t.TempDir(), "nope.txt"), "5", "1"); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if len(h.lines()) != 0 {
		t.Error("nothing should run without an instructions file")
	}
	if !strings.Contains(ansi.Strip(h.stderr.String()), "Error: instructions file") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
}

func TestNew_UsageErrors(t *testing.T) {
	tests := [][]string{
		{"new"},
		{"new", "5"},
		{"new", "five", "1"},
		{"new", "5", "0"},
		{"new", "--bogus", "5", "1"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			h := newHarness(t)
			if code := h.run(args...); code != 2 {
				t.Errorf("exit = %d, want 2", code)
			}
			if !strings.Contains(h.stderr.String(), "Usage: labkit new") {
				t.Errorf("stderr missing usage:\n%s", h.stderr.String())
			}
		})
	}
}

func TestFrom_ReadsInstructions(t *testing.T) {
	h := newHarness(t)
	ins := writeInstructions(t, t.TempDir(), "handout.txt", "COMS 3157 Lab 3\n\nPart 1: lists\nPart 2: files\n")

	if code := h.run("from", ins); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, h.stderr.String())
	}
	if _, err := os.Stat(filepath.Join(h.parent, "lab3", "part2", "Makefile")); err != nil {
		t.Errorf("part2 not created: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(h.parent, "lab3", "Lab 3 Instructions.txt"))
	if err != nil || !strings.HasPrefix(string(got), "COMS 3157 Lab 3") {
		t.Errorf("instructions copy = %q, %v", got, err)
	}
}

func TestFrom_ParseError(t *testing.T) {
	h := newHarness(t)
	ins := writeInstructions(t, t.TempDir(), "x.txt", "no numbers here")
	if code := h.run("from", ins); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if len(h.lines()) != 0 {
		t.Error("nothing should run when parsing fails")
	}
}

func TestPlan_HasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	ins := writeInstructions(t, t.TempDir(), "lab5.txt", "Lab 5\n")
	if code := h.run("plan", "--files", "-i", ins, "5", "1", "2"); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, h.stderr.String())
	}

	out := ansi.Strip(h.stdout.String())
	for _, want := range []string{
		"lab5/",
		"├── Makefile",
		"└── part2/",
		"$ git clone ks3343@clac.cs.columbia.edu:/home/jae/cs3157-pub/lab5 " + filepath.Join(h.parent, "lab5"),
		"labkit turnin lab5",
		"all: makePart1 makePart2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}

	if len(h.lines()) != 0 {
		t.Errorf("plan ran commands: %v", h.lines())
	}
	if _, err := os.Stat(filepath.Join(h.parent, "lab5")); !os.IsNotExist(err) {
		t.Error("plan must not create the lab")
	}
}

func TestPlan_From(t *testing.T) {
	h := newHarness(t)
	ins := writeInstructions(t, t.TempDir(), "x.txt", "Lab 8\nPart 4\n")
	if code := h.run("plan", "--from", ins); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, h.stderr.String())
	}
	if !strings.Contains(ansi.Strip(h.stdout.String()), "part4/") {
		t.Errorf("plan output:\n%s", h.stdout.String())
	}
}

// makeLab lays out an existing lab directory with the given part dirs.
func makeLab(t *testing.T, parent, name string, parts ...string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	for _, p := range parts {
		if err := os.MkdirAll(filepath.Join(dir, p), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLifecycleCommands(t *testing.T) {
	tests := []struct {
		cmd  string
		want func(dir string) []string
	}{
		{"submit", func(dir string) []string {
			return []string{"make clean", "rsync -az " + dir + "/ 'ks3343@clac.cs.columbia.edu:~/cs3157/lab5'"}
		}},
		{"push", func(dir string) []string {
			return []string{"rsync -az " + dir + "/ 'ks3343@clac.cs.columbia.edu:~/cs3157/lab5'"}
		}},
		{"pull", func(dir string) []string {
			return []string{"rsync -az 'ks3343@clac.cs.columbia.edu:~/cs3157/lab5/' " + dir + "/"}
		}},
		{"clean", func(string) []string { return []string{"make clean"} }},
		{"turnin", func(string) []string {
			return []string{"echo '/home/w3157/submit/submit-lab lab5' | ssh ks3343@clac.cs.columbia.edu"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			h := newHarness(t)
			dir := makeLab(t, h.parent, "lab5", "part1", "part2")

			if code := h.run(tt.cmd, "5"); code != 0 {
				t.Fatalf("exit = %d, stderr:\n%s", code, h.stderr.String())
			}
			if diff := cmp.Diff(tt.want(dir), h.lines()); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTurnin_IsInteractive(t *testing.T) {
	h := newHarness(t)
	makeLab(t, h.parent, "lab2", "part1")
	if code := h.run("turnin", "lab2"); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if len(h.commands) != 1 || !h.commands[0].Interactive {
		t.Errorf("turnin commands = %+v", h.commands)
	}
}

func TestSubmit_MissingLab(t *testing.T) {
	h := newHarness(t)
	if code := h.run("submit", "9"); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(h.stderr.String(), "does not exist") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
}

func TestSubmit_WithProgressView(t *testing.T) {
	h := newHarness(t)
	makeLab(t, h.parent, "lab5", "part1")
	h.env.IsTerminal = func() bool { return true }
	h.env.ProgramOptions = []tea.ProgramOption{
		tea.WithInput(bytes.NewReader(nil)),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
	}

	if code := h.run("submit", "5"); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, h.stderr.String())
	}
	if len(h.lines()) != 2 {
		t.Errorf("commands = %v", h.lines())
	}
	for _, c := range h.commands {
		if c.Interactive {
			t.Errorf("%q must not take the terminal while the progress view runs", c.Line)
		}
	}
	if !strings.Contains(ansi.Strip(h.stdout.String()), "Pushed lab5") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)

	if code := h.run("config", "path"); code != 0 {
		t.Fatalf("config path exit = %d", code)
	}
	path := strings.TrimSpace(h.stdout.String())
	if path != filepath.Join(h.env.ConfigDir, "config.yaml") {
		t.Errorf("config path = %q", path)
	}

	h.stdout.Reset()
	if code := h.run("config", "init"); code != 0 {
		t.Fatalf("config init exit = %d, stderr:\n%s", code, h.stderr.String())
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if diff := cmp.Diff(config.DefaultConfig(), cfg); diff != "" {
		t.Errorf("written config mismatch (-want +got):\n%s", diff)
	}

	if code := h.run("config", "init"); code != 1 {
		t.Errorf("second init exit = %d, want 1", code)
	}
	if code := h.run("config", "init", "--force"); code != 0 {
		t.Errorf("init --force exit = %d, want 0", code)
	}

	h.stdout.Reset()
	if code := h.run("config", "show"); code != 0 {
		t.Fatalf("config show exit = %d", code)
	}
	for _, want := range []string{"parent_dir: " + h.parent, "host: clac.cs.columbia.edu", "debounce: 2s"} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, h.stdout.String())
		}
	}
}

func TestParseLabNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"lab5", 5, false},
		{"Lab12", 12, false},
		{"lab", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"five", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLabNumber(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLabNumber(%q) = %d, %v", tt.in, got, err)
		}
	}

	parts, err := parsePartNumbers([]string{"1", "part3", "Part10"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 3, 10}, parts); diff != "" {
		t.Errorf("parsePartNumbers mismatch (-want +got):\n%s", diff)
	}
}
