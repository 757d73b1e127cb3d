package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	statusadapter "github.com/bnema/opennow-cli/internal/adapters/render/status"
	"github.com/bnema/opennow-cli/internal/application"
	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const frameInterval = time.Second / 30

var ErrSessionConflict = errors.New("the account already has an active session, rerun with --resume or --replace")

// conflictPolicy decides what the loop does when a launch finds sessions
// already running on the account.
type conflictPolicy int

const (
	conflictAbort conflictPolicy = iota
	conflictResume
	conflictReplace
)

// sessionDriver is the part of the Orchestrator the foreground loop uses.
type sessionDriver interface {
	Tick(now time.Time)
	Snapshot() application.Snapshot
	Handle(in application.Intent) error
	SendInput(event domain.InputEvent) bool
}

type frameMsg time.Time

type sessionModel struct {
	driver  sessionDriver
	spinner spinner.Model
	policy  conflictPolicy
	start   application.Intent
	now     func() time.Time

	started bool
	snap    application.Snapshot
	err     error
	done    bool
}

func newSessionModel(driver sessionDriver, start application.Intent, policy conflictPolicy, now func() time.Time) sessionModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return sessionModel{
		driver:  driver,
		spinner: s,
		policy:  policy,
		start:   start,
		now:     now,
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m sessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return frameMsg(m.now()) })
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	case frameMsg:
		return m.step(time.Time(msg))
	default:
		return m, nil
	}
}

func (m sessionModel) step(now time.Time) (tea.Model, tea.Cmd) {
	if !m.started {
		m.started = true
		if err := m.driver.Handle(m.start); err != nil {
			return m.finish(err)
		}
	}

	m.driver.Tick(now)
	m.snap = m.driver.Snapshot()

	switch {
	case m.snap.AwaitingDecision():
		if err := m.resolveConflict(); err != nil {
			return m.finish(err)
		}
	case m.snap.Failed():
		return m.finish(errors.New(m.snap.LastError))
	case m.snap.LastEnd != nil:
		return m.finish(nil)
	case !m.snap.Busy() && m.snap.PendingGame == nil:
		return m.finish(nil)
	}

	return m, nextFrame()
}

func (m sessionModel) resolveConflict() error {
	conflict := m.snap.Conflicts[0]
	switch m.policy {
	case conflictResume:
		return m.driver.Handle(application.ResumeIntent{Session: conflict})
	case conflictReplace:
		return m.driver.Handle(application.TerminateAndLaunchIntent{SessionID: conflict.ID, Game: *m.snap.PendingGame})
	default:
		_ = m.driver.Handle(application.DismissConflictIntent{})
		return fmt.Errorf("session %s (app %s): %w", conflict.ID, conflict.AppID, ErrSessionConflict)
	}
}

func (m sessionModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		_ = m.driver.Handle(application.StopStreamingIntent{})
		return m.finish(nil)
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.driver.SendInput(domain.InputEvent{Kind: domain.InputKey, Code: uint16(r), Pressed: true})
			m.driver.SendInput(domain.InputEvent{Kind: domain.InputKey, Code: uint16(r)})
		}
	}

	return m, nil
}

func (m sessionModel) finish(err error) (tea.Model, tea.Cmd) {
	m.done = true
	m.err = err
	return m, tea.Quit
}

func (m sessionModel) View() string {
	if m.done {
		return statusadapter.Snapshot(m.snap, statusadapter.RenderOptions{}) + "\n"
	}

	return statusadapter.Snapshot(m.snap, statusadapter.RenderOptions{Spinner: m.spinner.View()}) + "\n"
}

// runSessionLoop drives the Orchestrator from a bubbletea program until the
// session fails, the stream ends or the user quits.
func runSessionLoop(ctx context.Context, input io.Reader, output io.Writer, model sessionModel) (sessionModel, error) {
	p := tea.NewProgram(
		model,
		tea.WithInput(input),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return model, err
	}

	result, ok := finalModel.(sessionModel)
	if !ok {
		return model, fmt.Errorf("unexpected final session model type %T", finalModel)
	}

	return result, result.err
}
