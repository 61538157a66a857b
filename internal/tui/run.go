package tui

import (
	"errors"

	"echo-render/internal/repl"
	"echo-render/internal/streamwindow"

	tea "github.com/charmbracelet/bubbletea"
)

// Result 返回 TUI 退出时的统计信息。
type Result struct {
	Stats  repl.Stats
	Budget streamwindow.Budget
	// Err 是来源的结束错误，用户提前退出时为 nil。
	Err error
}

// Run 封装 Bubble Tea 入口。
func Run(opts Options) (Result, error) {
	programOptions := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if opts.AltScreen {
		programOptions = append(programOptions, tea.WithAltScreen())
	}
	if opts.InputTTY {
		programOptions = append(programOptions, tea.WithInputTTY())
	}
	program := tea.NewProgram(New(opts), programOptions...)
	m, err := program.Run()
	if opts.Source != nil {
		opts.Source.Close()
	}
	if err != nil {
		return Result{}, err
	}
	tuiModel, ok := m.(*Model)
	if !ok {
		return Result{}, errors.New("unexpected tui model")
	}
	return Result{
		Stats:  tuiModel.Stats(),
		Budget: tuiModel.Budget(),
		Err:    tuiModel.Err(),
	}, nil
}
