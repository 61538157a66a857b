package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"echo-render/internal/heightindex"
	"echo-render/internal/logger"
	"echo-render/internal/repl"
	"echo-render/internal/source"
	"echo-render/internal/streamwindow"
	"echo-render/internal/tui/render"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var log = logger.Named("tui")

const (
	defaultLivePaneHeight = 8
	searchLimit           = 200
	wheelStep             = 3
	// 标题、分隔线、状态行与底部提示各占一行。
	chromeHeight = 4
)

// Options 配置 TUI。
type Options struct {
	Transcript     *repl.Transcript
	Source         source.Source
	Title          string
	Budget         streamwindow.BudgetConfig
	LivePaneHeight int
	// Follow 为 false 时启动后停留在顶部。
	Follow bool
	// InputTTY 在标准输入被来源占用时从 /dev/tty 读取按键。
	InputTTY  bool
	AltScreen bool
	Clock     func() time.Time
	Copy      func(text string) error
}

// resizer 由能跟随终端尺寸的来源实现，例如 pty 中运行的命令。
type resizer interface {
	Resize(cols, rows int) error
}

type linesMsg struct {
	Lines []string
}

type sourceDoneMsg struct {
	Err error
}

type flushTickMsg struct{}

type copiedMsg struct {
	Rows int
	Err  error
}

// Model 是查看器的 Bubble Tea 模型：上方是按高度索引虚拟化的稳定区，
// 下方是每帧重绘的活跃区。来源的批次立即进入 Transcript，
// 视图按自适应的 flush 间隔同步。滚动把两个区域视为按阅读顺序相接的一段内容。
type Model struct {
	transcript     *repl.Transcript
	src            source.Source
	title          string
	stable         render.VirtualViewport
	live           render.LiveViewport
	liveBase       int
	livePaneHeight int
	budgetCfg      streamwindow.BudgetConfig
	budget         streamwindow.Budget
	lastRender     time.Duration
	status         *StatusIndicator
	spin           spinner.Model
	search         textinput.Model
	searching      bool
	queries        queryHistory
	hits           []repl.SearchHit
	hitIdx         int
	notice         string
	width          int
	height         int
	done           bool
	err            error
	clock          func() time.Time
	copy           func(string) error
}

func New(opts Options) *Model {
	tr := opts.Transcript
	if tr == nil {
		tr = repl.NewTranscript(repl.TranscriptOptions{})
	}
	budgetCfg := opts.Budget
	if budgetCfg == (streamwindow.BudgetConfig{}) {
		budgetCfg = streamwindow.DefaultBudgetConfig()
	}
	liveHeight := opts.LivePaneHeight
	if liveHeight <= 0 {
		liveHeight = defaultLivePaneHeight
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "echo-render"
	}

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "fuzzy search"
	search.CharLimit = 256

	state := StatusIdle
	if opts.Source != nil {
		state = StatusStreaming
		tr.SetStreaming(true)
	}

	m := &Model{
		transcript:     tr,
		src:            opts.Source,
		title:          title,
		stable:         render.NewVirtualViewport(tr.Width(), 12),
		live:           render.NewLiveViewport(tr.Width(), liveHeight),
		livePaneHeight: liveHeight,
		budgetCfg:      budgetCfg,
		budget:         streamwindow.NewBudget(budgetCfg),
		status:         NewStatusIndicator(state, clock),
		spin:           spin,
		search:         search,
		width:          tr.Width(),
		height:         24,
		clock:          clock,
		copy:           copyFn,
		done:           opts.Source == nil,
	}
	if !opts.Follow {
		m.stable.SetFollow(false, tr.Heights())
	}
	m.sync()
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.scheduleFlush()}
	if m.src != nil {
		cmds = append(cmds, m.listenSource(), m.spin.Tick)
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case linesMsg:
		m.preserveAnchor(func() bool { return m.transcript.Append(msg.Lines) })
		cmds = append(cmds, m.listenSource())
	case sourceDoneMsg:
		m.finishSource(msg.Err)
	case flushTickMsg:
		m.budget = streamwindow.UpdateRenderBudget(m.budget, m.lastRender, m.budgetCfg)
		m.preserveAnchor(m.transcript.FlushStable)
		m.sync()
		cmds = append(cmds, m.scheduleFlush())
	case copiedMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("copy failed: %v", msg.Err)
			log.WithError(msg.Err).Warn("clipboard write failed")
		} else {
			m.notice = fmt.Sprintf("copied %d rows", msg.Rows)
		}
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			cmds = append(cmds, cmd)
		}
	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scroll(msg, true, func(idx heightindex.State) { m.stable.ScrollBy(-wheelStep, idx) })
		case tea.MouseButtonWheelDown:
			m.scroll(msg, false, func(idx heightindex.State) { m.stable.ScrollBy(wheelStep, idx) })
		}
	case tea.KeyMsg:
		if m.searching {
			cmds = append(cmds, m.handleSearchKey(msg))
		} else {
			cmds = append(cmds, m.handleKey(msg))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	idx := m.transcript.Heights()
	m.notice = ""
	switch msg.String() {
	case "ctrl+c", "q":
		if m.src != nil {
			m.src.Close()
		}
		return tea.Quit
	case "up", "k":
		m.scroll(msg, true, func(idx heightindex.State) { m.stable.ScrollBy(-1, idx) })
	case "down", "j":
		m.scroll(msg, false, func(idx heightindex.State) { m.stable.ScrollBy(1, idx) })
	case "pgup", "b":
		m.scroll(msg, true, m.stable.PageUp)
	case "pgdown", " ":
		m.scroll(msg, false, m.stable.PageDown)
	case "home", "g":
		m.stable.GotoTop(idx)
		m.live.GotoTop()
	case "end", "G":
		m.stable.GotoBottom(idx)
		m.live.GotoBottom()
	case "f":
		follow := !m.stable.Following()
		m.stable.SetFollow(follow, idx)
		if follow {
			m.live.GotoBottom()
		}
	case "/":
		m.searching = true
		m.search.Reset()
		m.queries.ResetBrowsing()
		return m.search.Focus()
	case "n":
		m.stepHit(1)
	case "N":
		m.stepHit(-1)
	case "esc":
		m.hits = nil
	case "y":
		return m.copyVisible()
	}
	return nil
}

// scroll 向上时先滚动活跃区直到其顶部，再滚动稳定区；向下时先把稳定区滚到底，
// 再交给活跃区。活跃区通过 bubbles viewport 的按键与滚轮处理移动。
func (m *Model) scroll(msg tea.Msg, up bool, stable func(idx heightindex.State)) {
	idx := m.transcript.Heights()
	switch {
	case up && !m.live.AtTop():
		m.live.HandleUpdate(msg)
	case up:
		stable(idx)
	case !m.stable.AtBottom(idx):
		stable(idx)
	default:
		m.live.HandleUpdate(msg)
	}
}

// following 报告两个区域是否都贴底。
func (m *Model) following() bool {
	return m.stable.Following() && m.live.AtBottom()
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		query := m.search.Value()
		m.queries.Add(query)
		m.closeSearch()
		m.hits = m.transcript.Search(query, searchLimit)
		m.hitIdx = 0
		if len(m.hits) == 0 {
			m.notice = fmt.Sprintf("no match for %q", strings.TrimSpace(query))
			return nil
		}
		m.jumpToHit()
		return nil
	case "esc", "ctrl+c":
		m.closeSearch()
		return nil
	case "up":
		if text, ok := m.queries.Prev(m.search.Value()); ok {
			m.search.SetValue(text)
			m.search.CursorEnd()
		}
		return nil
	case "down":
		if text, ok := m.queries.Next(); ok {
			m.search.SetValue(text)
			m.search.CursorEnd()
		}
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return cmd
}

func (m *Model) closeSearch() {
	m.searching = false
	m.search.Blur()
}

func (m *Model) stepHit(delta int) {
	if len(m.hits) == 0 {
		return
	}
	m.hitIdx = (m.hitIdx + delta + len(m.hits)) % len(m.hits)
	m.jumpToHit()
}

// jumpToHit 按 Seq 定位命中行，搜索之后发生的淘汰不会让位置错乱。
func (m *Model) jumpToHit() {
	hit := m.hits[m.hitIdx]
	row, ok := m.transcript.IndexOf(hit.Seq)
	if !ok {
		m.notice = "match was evicted from history"
		return
	}
	m.stable.ScrollToRow(row, m.transcript.Heights())
}

func (m *Model) copyVisible() tea.Cmd {
	start, end, _ := m.stable.Window(m.transcript.Heights())
	if start >= end {
		m.notice = "nothing to copy"
		return nil
	}
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, m.transcript.RowText(i))
	}
	text := strings.Join(rows, "\n")
	copyFn := m.copy
	return func() tea.Msg {
		return copiedMsg{Rows: len(rows), Err: copyFn(text)}
	}
}

// preserveAnchor 执行 change；未跟随时把视口顶部固定在原来的行上。
func (m *Model) preserveAnchor(change func() bool) {
	if m.stable.Following() {
		change()
		return
	}
	anchor := m.transcript.AnchorAt(m.stable.Offset())
	if !change() {
		return
	}
	if offset, ok := m.transcript.Resolve(anchor); ok {
		m.stable.SetOffset(offset, m.transcript.Heights())
		return
	}
	// 锚点行已被淘汰，停在最旧的保留行上。
	m.stable.SetOffset(0, m.transcript.Heights())
}

func (m *Model) finishSource(err error) {
	m.preserveAnchor(m.transcript.Finish)
	m.done = true
	m.err = err
	if err != nil {
		m.status.SetState(StatusError)
		m.status.SetHeader("Error: " + err.Error())
		log.WithError(err).WithField("session", m.transcript.ID()).Warn("source ended with error")
	} else {
		m.status.SetState(StatusDone)
	}
	m.sync()
}

// sync 把 Transcript 的当前内容同步到两个视口。
func (m *Model) sync() {
	stats := m.transcript.Stats()
	base := stats.TotalLines - stats.Live
	m.live.DropFront(base - m.liveBase)
	m.liveBase = base
	m.live.SetLines(m.transcript.Live())
	m.stable.Sync(m.transcript.Heights())
	m.status.SetDetail(fmt.Sprintf("%d lines • flush %s", stats.TotalLines, m.budget.FlushInterval))
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height

	liveHeight := min(m.livePaneHeight, max(height-chromeHeight-1, 0))
	stableHeight := max(height-chromeHeight-liveHeight, 1)

	var anchor repl.Anchor
	if !m.stable.Following() {
		anchor = m.transcript.AnchorAt(m.stable.Offset())
	}
	m.transcript.SetWidth(width)
	m.stable.SetSize(width, stableHeight)
	m.live.Resize(width, liveHeight)
	m.search.Width = max(width-2, 1)

	if offset, ok := m.transcript.Resolve(anchor); ok {
		m.stable.SetOffset(offset, m.transcript.Heights())
	}
	if r, ok := m.src.(resizer); ok && !m.done {
		if err := r.Resize(width, max(height-m.livePaneHeight, 1)); err != nil {
			log.WithError(err).Warn("resize source failed")
		}
	}
	m.sync()
}

func (m *Model) listenSource() tea.Cmd {
	if m.src == nil {
		return nil
	}
	src := m.src
	return func() tea.Msg {
		lines, ok := <-src.Lines()
		if !ok {
			return sourceDoneMsg{Err: src.Wait()}
		}
		return linesMsg{Lines: lines}
	}
}

func (m *Model) scheduleFlush() tea.Cmd {
	return tea.Tick(m.budget.FlushInterval, func(time.Time) tea.Msg {
		return flushTickMsg{}
	})
}

func (m *Model) View() string {
	start := m.clock()
	defer func() { m.lastRender = m.clock().Sub(start) }()

	rows := m.stable.Render(m.transcript.Heights(), m.transcript.RowText)
	for len(rows) < m.stable.Height() {
		rows = append(rows, "")
	}
	parts := []string{
		m.renderHeader(),
		strings.Join(rows, "\n"),
		ruleStyle.Render(strings.Repeat("─", max(m.width, 1))),
	}
	if m.live.Height > 0 {
		parts = append(parts, m.live.View())
	}
	parts = append(parts, m.status.Render(m.width, m.spin.View()), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Stats 返回 Transcript 的计数。
func (m *Model) Stats() repl.Stats { return m.transcript.Stats() }

// Budget 返回当前渲染预算。
func (m *Model) Budget() streamwindow.Budget { return m.budget }

// Err 返回来源的结束错误。
func (m *Model) Err() error { return m.err }

func (m *Model) renderHeader() string {
	stats := m.transcript.Stats()
	left := titleStyle.Render(m.title)
	info := []string{
		fmt.Sprintf("%d rows", stats.Retained),
		fmt.Sprintf("%d live", stats.Live),
	}
	if stats.Evicted > 0 {
		info = append(info, fmt.Sprintf("%d evicted", stats.Evicted))
	}
	if m.following() {
		info = append(info, "follow")
	} else {
		info = append(info, m.renderScrollStatus())
	}
	right := mutedStyle.Render(strings.Join(info, " • "))
	return lipgloss.NewStyle().
		Width(max(20, m.width)).
		MaxHeight(1).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().PaddingLeft(2).Render(right)))
}

func (m *Model) renderScrollStatus() string {
	total := m.transcript.Heights().TotalHeight() - m.stable.Height()
	if total <= 0 {
		return "100%"
	}
	percent := int(math.Round(float64(m.stable.Offset()) * 100 / float64(total)))
	return fmt.Sprintf("%d%%", min(max(percent, 0), 100))
}

func (m *Model) renderFooter() string {
	switch {
	case m.searching:
		return m.search.View()
	case m.notice != "":
		return mutedStyle.Render(m.notice)
	case len(m.hits) > 0:
		hit := m.hits[m.hitIdx]
		line := render.HighlightMatches(hit.Text, hit.Matched, matchStyle)
		prefix := mutedStyle.Render(fmt.Sprintf("match %d/%d: ", m.hitIdx+1, len(m.hits)))
		text := render.LinesToStrings([]render.Line{line})[0]
		return lipgloss.NewStyle().MaxWidth(max(m.width, 1)).Render(prefix + text)
	}
	hint := "↑/↓ 滚动 • PgUp/PgDn 翻页 • f 跟随 • / 搜索 • n/N 下一个/上一个 • y 复制 • q 退出"
	return mutedStyle.Width(max(20, m.width)).MaxHeight(1).Render(hint)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7A85"))
	ruleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5E6472"))
	matchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB454"))
)
