package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"echo-render/internal/config"
	"echo-render/internal/repl"
	"echo-render/internal/streamwindow"
	"echo-render/internal/tui/render"
)

type benchOptions struct {
	lines      int
	batch      int
	width      int
	height     int
	arrival    time.Duration
	rowCost    time.Duration
	reflow     []int
	scrollback string
}

type benchReport struct {
	session     string
	stats       repl.Stats
	frames      int
	elapsed     time.Duration
	interval    time.Duration
	minInterval time.Duration
	maxInterval time.Duration
	written     int
}

func parseBenchArgs(args []string) (benchOptions, error) {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := benchOptions{}
	var reflow csvSlice
	fs.IntVar(&opts.lines, "lines", 100000, "Number of synthetic lines to stream")
	fs.IntVar(&opts.batch, "batch", 64, "Lines per producer batch")
	fs.IntVar(&opts.width, "width", 80, "Terminal width used for measuring rows")
	fs.IntVar(&opts.height, "height", 40, "Viewport height in terminal rows")
	fs.DurationVar(&opts.arrival, "arrival", time.Millisecond, "Simulated time between producer batches")
	fs.DurationVar(&opts.rowCost, "row-cost", 200*time.Microsecond, "Simulated render cost per painted terminal row")
	fs.Var(&reflow, "reflow", "Comma separated widths to switch to at evenly spaced points")
	fs.StringVar(&opts.scrollback, "scrollback", "", "Write stabilized rows to this file")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.lines < 0 || opts.batch <= 0 || opts.width <= 0 || opts.height <= 0 {
		return opts, errors.New("lines must be >= 0; batch, width and height must be > 0")
	}
	for _, raw := range reflow {
		w, err := strconv.Atoi(raw)
		if err != nil || w <= 0 {
			return opts, fmt.Errorf("invalid reflow width %q", raw)
		}
		opts.reflow = append(opts.reflow, w)
	}
	return opts, nil
}

func runBench(cfg config.Config, args []string, out io.Writer) error {
	opts, err := parseBenchArgs(args)
	if err != nil {
		return err
	}
	var sb *repl.Scrollback
	if opts.scrollback != "" {
		f, err := os.Create(opts.scrollback)
		if err != nil {
			return fmt.Errorf("create scrollback: %w", err)
		}
		defer f.Close()
		sb = repl.NewScrollback(f)
	}
	report := simulate(cfg, opts, sb)
	if err := sb.Flush(); err != nil {
		return fmt.Errorf("write scrollback: %w", err)
	}
	report.written = sb.Written()
	printReport(out, report)
	return nil
}

// simulate 以模拟时钟驱动渲染循环：生产者按 arrival 间隔投递批次，
// 每到 flush 间隔执行一次 FLUSH_STABLE 并"绘制"一帧，绘制耗时与绘制的终端行数成正比。
func simulate(cfg config.Config, opts benchOptions, sb *repl.Scrollback) benchReport {
	var onStable func([]repl.Row)
	if sb != nil {
		onStable = sb.AppendRows
	}
	tr := newTranscript(cfg, opts.width, onStable)
	vp := render.NewVirtualViewport(opts.width, opts.height)
	budgetCfg := cfg.RenderBudget()
	budget := streamwindow.NewBudget(budgetCfg)
	report := benchReport{
		session:     tr.ID(),
		minInterval: budget.FlushInterval,
		maxInterval: budget.FlushInterval,
	}

	reflowAt := make(map[int]int, len(opts.reflow))
	for i, w := range opts.reflow {
		reflowAt[opts.lines*(i+1)/(len(opts.reflow)+1)] = w
	}

	var now time.Duration
	nextFrame := budget.FlushInterval
	frame := func() {
		tr.FlushStable()
		vp.Sync(tr.Heights())
		painted := len(vp.Render(tr.Heights(), tr.RowText))
		for _, line := range tr.Live() {
			painted += render.MeasureHeight(line, opts.width)
		}
		budget = streamwindow.UpdateRenderBudget(budget, time.Duration(painted)*opts.rowCost, budgetCfg)
		report.frames++
		report.minInterval = min(report.minInterval, budget.FlushInterval)
		report.maxInterval = max(report.maxInterval, budget.FlushInterval)
		nextFrame = now + budget.FlushInterval
	}

	tr.SetStreaming(true)
	lines := make([]string, 0, opts.batch)
	for sent := 0; sent < opts.lines; {
		lines = lines[:0]
		for len(lines) < opts.batch && sent < opts.lines {
			if w, ok := reflowAt[sent]; ok && sent > 0 {
				tr.SetWidth(w)
				vp.SetSize(w, opts.height)
				opts.width = w
			}
			lines = append(lines, syntheticLine(sent))
			sent++
		}
		tr.Append(append([]string(nil), lines...))
		now += opts.arrival
		for now >= nextFrame {
			frame()
		}
	}
	tr.Finish()
	frame()

	report.stats = tr.Stats()
	report.elapsed = now
	report.interval = budget.FlushInterval
	return report
}

func syntheticLine(n int) string {
	switch {
	case n%97 == 0:
		return fmt.Sprintf("\x1b[31merror\x1b[0m line %d: %s", n, "a much longer diagnostic message that wraps across several terminal rows when the viewport is narrow")
	case n%13 == 0:
		return fmt.Sprintf("warn  line %d\tretrying", n)
	default:
		return fmt.Sprintf("info  line %d", n)
	}
}

func printReport(out io.Writer, r benchReport) {
	fmt.Fprintf(out, "session   %s\n", r.session)
	fmt.Fprintf(out, "lines     %d\n", r.stats.TotalLines)
	fmt.Fprintf(out, "retained  %d\n", r.stats.Retained)
	fmt.Fprintf(out, "evicted   %d\n", r.stats.Evicted)
	fmt.Fprintf(out, "flushes   %d\n", r.stats.Flushes)
	fmt.Fprintf(out, "height    %d\n", r.stats.Height)
	fmt.Fprintf(out, "frames    %d\n", r.frames)
	fmt.Fprintf(out, "simulated %s\n", r.elapsed)
	fmt.Fprintf(out, "interval  %s (min %s, max %s)\n", r.interval, r.minInterval, r.maxInterval)
	if r.written > 0 {
		fmt.Fprintf(out, "written   %d\n", r.written)
	}
}
