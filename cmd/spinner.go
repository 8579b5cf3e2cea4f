package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	operationSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	operationDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	operationFailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// operationDoneMsg ends a remote Jira or AWS call started from the menu.
type operationDoneMsg struct {
	err     error
	elapsed time.Duration
}

// operationSpinnerModel shows which menu operation is in flight and leaves a
// one-line outcome behind once the call returns.
type operationSpinnerModel struct {
	spinner spinner.Model
	label   string
	call    tea.Cmd
	result  *operationDoneMsg
}

func newOperationSpinnerModel(label string, call tea.Cmd) operationSpinnerModel {
	return operationSpinnerModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(operationSpinnerStyle)),
		label:   label,
		call:    call,
	}
}

func (m operationSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.call)
}

func (m operationSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.result != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case operationDoneMsg:
		m.result = &msg
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m operationSpinnerModel) View() string {
	if m.result == nil {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
	}

	name := strings.TrimSuffix(m.label, "...")
	took := m.result.elapsed.Round(100 * time.Millisecond)
	if m.result.err != nil {
		return operationFailedStyle.Render("✗") + fmt.Sprintf(" %s failed after %s\n", name, took)
	}
	return operationDoneStyle.Render("✓") + fmt.Sprintf(" %s (%s)\n", name, took)
}

func (m operationSpinnerModel) err() error {
	if m.result == nil {
		return nil
	}
	return m.result.err
}

// runSpinner shows label on output until fn returns and hands back fn's error.
func runSpinner(ctx context.Context, output io.Writer, label string, fn func(context.Context) error) error {
	call := func() tea.Msg {
		started := time.Now()
		err := fn(ctx)
		return operationDoneMsg{err: err, elapsed: time.Since(started)}
	}

	p := tea.NewProgram(
		newOperationSpinnerModel(label, call),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(operationSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err()
}

func runDirect(ctx context.Context, _ io.Writer, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
