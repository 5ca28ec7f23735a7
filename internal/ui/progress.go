// pattern: Imperative Shell

package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"labkit/internal/pipeline"
)

// StepState is where a step is in its lifecycle.
type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepDone
	StepFailed
)

// StepStatus is one row of the progress view.
type StepStatus struct {
	Name  string
	State StepState
	Err   error
}

type stepStartedMsg struct{ name string }

type stepFinishedMsg struct {
	name string
	err  error
}

type workDoneMsg struct{ err error }

// ProgressModel shows planned steps with a spinner on the running one and
// ✓/✗ on finished ones. It quits when the work reports done.
type ProgressModel struct {
	title   string
	steps   []StepStatus
	spinner spinner.Model
	styles  *Styles
	cancel  context.CancelFunc

	done      bool
	err       error
	cancelled bool
}

// NewProgressModel lists stepNames as pending. cancel is called on ctrl+c.
func NewProgressModel(title string, stepNames []string, styles *Styles, cancel context.CancelFunc) ProgressModel {
	steps := make([]StepStatus, len(stepNames))
	for i, name := range stepNames {
		steps[i] = StepStatus{Name: name}
	}

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.AccentStyle()

	return ProgressModel{
		title:   title,
		steps:   steps,
		spinner: s,
		styles:  styles,
		cancel:  cancel,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelled {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case stepStartedMsg:
		m.setState(msg.name, StepRunning, nil)
		return m, nil

	case stepFinishedMsg:
		if msg.err != nil {
			m.setState(msg.name, StepFailed, msg.err)
		} else {
			m.setState(msg.name, StepDone, nil)
		}
		return m, nil

	case workDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// setState updates the named step, appending it if it was not planned.
func (m *ProgressModel) setState(name string, state StepState, err error) {
	for i := range m.steps {
		if m.steps[i].Name == name {
			m.steps[i].State = state
			m.steps[i].Err = err
			return
		}
	}
	m.steps = append(m.steps, StepStatus{Name: name, State: state, Err: err})
}

// Steps returns the current status of every step.
func (m ProgressModel) Steps() []StepStatus {
	return append([]StepStatus(nil), m.steps...)
}

func (m ProgressModel) View() string {
	parts := []string{m.styles.TitleStyle().Render(m.title)}

	for _, step := range m.steps {
		var line string
		switch step.State {
		case StepDone:
			line = m.styles.SuccessStyle().Render("✓") + " " + step.Name
		case StepFailed:
			line = m.styles.ErrorStyle().Render("✗") + " " + step.Name
			if step.Err != nil {
				line += m.styles.SubtitleStyle().Render(": " + firstLine(step.Err.Error()))
			}
		case StepRunning:
			line = m.spinner.View() + " " + step.Name
		default:
			line = m.styles.DisabledStyle().Render("· " + step.Name)
		}
		parts = append(parts, line)
	}

	switch {
	case m.done && m.err != nil:
		parts = append(parts, m.styles.ErrorStyle().Render("✗ failed"))
	case m.done:
		parts = append(parts, m.styles.SuccessStyle().Render("✓ done"))
	case m.cancelled:
		parts = append(parts, m.styles.HelpStyle().Render("cancelling..."))
	default:
		parts = append(parts, m.styles.HelpStyle().Render("ctrl+c: cancel"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// programObserver forwards pipeline events into a running program.
type programObserver struct {
	p *tea.Program
}

func (o programObserver) StepStarted(name string) {
	o.p.Send(stepStartedMsg{name: name})
}

func (o programObserver) StepFinished(name string, err error) {
	o.p.Send(stepFinishedMsg{name: name, err: err})
}

// RunWithProgress runs work under a progress view. work receives the
// observer to report steps to and a context cancelled on ctrl+c.
func RunWithProgress(
	ctx context.Context,
	title string,
	stepNames []string,
	styles *Styles,
	work func(ctx context.Context, obs pipeline.Observer) error,
	opts ...tea.ProgramOption,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewProgressModel(title, stepNames, styles, cancel)
	p := tea.NewProgram(model, opts...)

	workErr := make(chan error, 1)
	go func() {
		err := work(ctx, programObserver{p: p})
		workErr <- err
		p.Send(workDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-workErr
		return fmt.Errorf("progress view: %w", err)
	}
	return <-workErr
}

// PlainObserver prints one line per finished step. Used when stdout is not
// a terminal.
type PlainObserver struct {
	W      io.Writer
	Styles *Styles
}

func (o PlainObserver) StepStarted(string) {}

func (o PlainObserver) StepFinished(name string, err error) {
	if err != nil {
		fmt.Fprintf(o.W, "%s %s: %s\n", o.Styles.ErrorStyle().Render("✗"), name, firstLine(err.Error()))
		return
	}
	fmt.Fprintf(o.W, "%s %s\n", o.Styles.SuccessStyle().Render("✓"), name)
}
