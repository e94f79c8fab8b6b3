package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/jellyfin-enrich/internal/pipeline"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type annotateDoneMsg struct {
	err error
}

type annotateProgressMsg pipeline.Stats

type annotateSpinnerModel struct {
	spinner spinner.Model
	label   string
	total   int
	stats   pipeline.Stats
	work    tea.Cmd
	err     error
	done    bool
}

func newAnnotateSpinnerModel(label string, total int, work tea.Cmd) annotateSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return annotateSpinnerModel{
		spinner: s,
		label:   label,
		total:   total,
		work:    work,
	}
}

func (m annotateSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m annotateSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case annotateProgressMsg:
		m.stats = pipeline.Stats(msg)
		return m, nil
	case annotateDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m annotateSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s %d/%d (in flight %d)", m.spinner.View(), m.label, m.stats.Done, m.total, m.stats.InFlight)
}

// runAnnotateSpinner shows a spinner with pipeline progress on output while
// work runs.
func runAnnotateSpinner(ctx context.Context, output io.Writer, label string, total int, work func(context.Context, func(pipeline.Stats)) error) error {
	var p *tea.Program
	progress := func(st pipeline.Stats) {
		p.Send(annotateProgressMsg(st))
	}
	workCmd := func() tea.Msg {
		return annotateDoneMsg{err: work(ctx, progress)}
	}

	p = tea.NewProgram(
		newAnnotateSpinnerModel(label, total, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(annotateSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
