package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"echo-render/internal/config"
	"echo-render/internal/repl"
	"echo-render/internal/source"
	"echo-render/internal/tui"

	"github.com/charmbracelet/x/term"
)

type viewerOptions struct {
	title string
	plain bool
	// inputTTY 表示标准输入被来源占用，按键需从 /dev/tty 读取。
	inputTTY bool
}

func terminalSize() (int, int) {
	width, height, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

func newTranscript(cfg config.Config, width int, onStable func([]repl.Row)) *repl.Transcript {
	return repl.NewTranscript(repl.TranscriptOptions{
		Window:      cfg.StreamWindow(),
		HistorySize: cfg.History.MaxRows,
		Width:       width,
		OnStable:    onStable,
	})
}

// runViewer 在终端可用时启动 TUI，否则退化为把稳定行写到标准输出。
func runViewer(cfg config.Config, src source.Source, opts viewerOptions) error {
	if opts.plain || !term.IsTerminal(os.Stdout.Fd()) {
		return runPlain(cfg, src, os.Stdout)
	}
	width, _ := terminalSize()
	tr := newTranscript(cfg, width, nil)
	entry := log.WithField("session", tr.ID()).WithField("source", opts.title)
	entry.Info("viewer starting")

	res, err := tui.Run(tui.Options{
		Transcript:     tr,
		Source:         src,
		Title:          opts.title,
		Budget:         cfg.RenderBudget(),
		LivePaneHeight: cfg.Viewport.LivePaneHeight,
		Follow:         cfg.Viewport.Follow,
		InputTTY:       opts.inputTTY,
		AltScreen:      true,
	})
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	entry.WithField("lines", res.Stats.TotalLines).
		WithField("evicted", res.Stats.Evicted).
		WithField("flush_interval", res.Budget.FlushInterval).
		Info("viewer closed")
	fmt.Fprintf(os.Stderr, "%s: %d lines, %d retained, %d evicted\n",
		opts.title, res.Stats.TotalLines, res.Stats.Retained, res.Stats.Evicted)
	return res.Err
}

// runPlain 不启动 TUI，只把稳定下来的行按顺序写出。
func runPlain(cfg config.Config, src source.Source, out io.Writer) error {
	sb := repl.NewScrollback(out)
	tr := newTranscript(cfg, 0, sb.AppendRows)
	tr.SetStreaming(true)
	for batch := range src.Lines() {
		tr.Append(batch)
	}
	srcErr := src.Wait()
	tr.Finish()
	if err := sb.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.WithField("session", tr.ID()).WithField("rows", sb.Written()).Info("plain output finished")
	return srcErr
}

func closeOnDone(ctx context.Context, src source.Source) {
	go func() {
		<-ctx.Done()
		src.Close()
	}()
}
