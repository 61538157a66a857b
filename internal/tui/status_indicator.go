package tui

import (
	"fmt"
	"time"

	"echo-render/internal/tui/render"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// StatusState 枚举状态行可显示的状态。
type StatusState int

const (
	// StatusStreaming 表示来源仍在输出，计时器持续累加。
	StatusStreaming StatusState = iota
	// StatusDone 表示来源正常结束。
	StatusDone
	// StatusError 表示来源异常结束。
	StatusError
	// StatusIdle 表示尚未接入来源，不显示状态行。
	StatusIdle
)

func (s StatusState) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	case StatusIdle:
		return "idle"
	default:
		return "unknown"
	}
}

func (s StatusState) defaultHeader() string {
	switch s {
	case StatusStreaming:
		return "Streaming"
	case StatusDone:
		return "Done"
	case StatusError:
		return "Error"
	default:
		return ""
	}
}

func (s StatusState) tracksElapsed() bool { return s == StatusStreaming }

func (s StatusState) visible() bool { return s != StatusIdle }

// StatusIndicator 管理状态行：标志 + 标题 + 计时 + 附加信息。
type StatusIndicator struct {
	header string
	detail string
	state  StatusState

	elapsedRunning time.Duration
	lastResumeAt   time.Time
	paused         bool

	clock func() time.Time
}

// NewStatusIndicator 创建处于 state 的状态行。clock 为 nil 时使用 time.Now。
func NewStatusIndicator(state StatusState, clock func() time.Time) *StatusIndicator {
	if clock == nil {
		clock = time.Now
	}
	w := &StatusIndicator{
		header:       state.defaultHeader(),
		state:        state,
		clock:        clock,
		lastResumeAt: clock(),
		paused:       !state.tracksElapsed(),
	}
	return w
}

// State 返回当前状态。
func (w *StatusIndicator) State() StatusState { return w.state }

// SetState 切换状态并按需暂停或恢复计时。
func (w *StatusIndicator) SetState(state StatusState) {
	if w == nil {
		return
	}
	now := w.clock()
	if state.tracksElapsed() {
		w.resumeTimerAt(now)
	} else {
		w.pauseTimerAt(now)
	}
	w.state = state
	w.header = state.defaultHeader()
}

// SetHeader 覆盖标题文本，例如附上错误原因。
func (w *StatusIndicator) SetHeader(header string) {
	if w == nil {
		return
	}
	w.header = header
}

// SetDetail 设置计时之后的附加信息。
func (w *StatusIndicator) SetDetail(detail string) {
	if w == nil {
		return
	}
	w.detail = detail
}

// Elapsed 返回累计的流式时长。
func (w *StatusIndicator) Elapsed() time.Duration {
	if w == nil {
		return 0
	}
	return w.elapsedAt(w.clock())
}

// Render 绘制状态行，宽度超出时截断。
func (w *StatusIndicator) Render(width int, spinnerFrame string) string {
	if w == nil || width <= 0 || !w.state.visible() {
		return ""
	}
	now := w.clock()
	frame := spinnerFrame
	switch w.state {
	case StatusDone:
		frame = "✓"
	case StatusError:
		frame = "!"
	}

	spans := []render.Span{{Text: frame}}
	if w.header != "" {
		spans = append(spans, render.Span{Text: " "}, render.Span{Text: w.header})
	}
	hint := fmt.Sprintf("(%s)", fmtElapsedCompact(uint64(w.elapsedAt(now).Seconds())))
	if w.detail != "" {
		hint = fmt.Sprintf("(%s • %s)", fmtElapsedCompact(uint64(w.elapsedAt(now).Seconds())), w.detail)
	}
	spans = append(spans, render.Span{Text: " "}, render.Span{Text: hint, Style: lipgloss.NewStyle().Faint(true)})

	clamped := clampSpans(spans, width)
	if len(clamped) == 0 {
		return ""
	}
	return render.LinesToStrings([]render.Line{{Spans: clamped}})[0]
}

func (w *StatusIndicator) pauseTimerAt(now time.Time) {
	if w.paused {
		return
	}
	w.elapsedRunning += now.Sub(w.lastResumeAt)
	w.paused = true
}

func (w *StatusIndicator) resumeTimerAt(now time.Time) {
	if !w.paused {
		return
	}
	w.lastResumeAt = now
	w.paused = false
}

func (w *StatusIndicator) elapsedAt(now time.Time) time.Duration {
	if w.paused {
		return w.elapsedRunning
	}
	return w.elapsedRunning + now.Sub(w.lastResumeAt)
}

// fmtElapsedCompact 将秒数格式化为紧凑的时长。
func fmtElapsedCompact(elapsedSecs uint64) string {
	switch {
	case elapsedSecs < 60:
		return fmt.Sprintf("%ds", elapsedSecs)
	case elapsedSecs < 3600:
		return fmt.Sprintf("%dm %02ds", elapsedSecs/60, elapsedSecs%60)
	default:
		return fmt.Sprintf("%dh %02dm %02ds", elapsedSecs/3600, (elapsedSecs%3600)/60, elapsedSecs%60)
	}
}

func clampSpans(spans []render.Span, width int) []render.Span {
	if width <= 0 {
		return nil
	}
	remaining := width
	out := make([]render.Span, 0, len(spans))
	for _, sp := range spans {
		if remaining <= 0 {
			break
		}
		tw := runewidth.StringWidth(sp.Text)
		if tw <= remaining {
			out = append(out, sp)
			remaining -= tw
			continue
		}
		if text := runewidth.Truncate(sp.Text, remaining, ""); text != "" {
			sp.Text = text
			out = append(out, sp)
		}
		remaining = 0
	}
	return out
}
