package repl

import (
	"strings"

	"echo-render/internal/heightindex"
	"echo-render/internal/history"
	"echo-render/internal/logger"
	"echo-render/internal/streamwindow"
	tuirender "echo-render/internal/tui/render"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

var log = logger.Named("transcript")

// Row 是一行已稳定的输出。Seq 在同一 Transcript 内单调递增，作为行的稳定身份：
// 行被淘汰或前面的行被删除后，Seq 仍然指向同一逻辑行。
type Row struct {
	Seq  uint64
	Text string
}

// Anchor 记录视口顶部所在的行（按 Seq）以及在该行内的偏移。
type Anchor struct {
	Seq    uint64
	Within int
	Valid  bool
}

// Stats 汇总 Transcript 的计数。
type Stats struct {
	TotalLines int
	Retained   int
	Live       int
	Flushes    int
	Evicted    int
	Height     int
}

// TranscriptOptions 配置 Transcript。
type TranscriptOptions struct {
	Window      streamwindow.Config
	HistorySize int
	Width       int
	// OnStable 在行进入稳定区后调用，按顺序交付。
	OnStable func(rows []Row)
}

// Transcript 组合三种核心结构：新行先进入 StreamWindow；被 flush 的行转存到容量受限的
// history.Buffer，并把测量后的高度追加到 heightindex；history 淘汰的行从高度索引头部
// 同步删除。Transcript 持有各结构的当前值，每次调用纯函数后保存返回的新值。
type Transcript struct {
	id       string
	cfg      streamwindow.Config
	window   streamwindow.State
	rows     history.Buffer[Row]
	heights  heightindex.State
	width    int
	nextSeq  uint64
	evicted  int
	pending  int
	onStable func([]Row)
}

// NewTranscript 创建空 Transcript。HistorySize 为负属于编程错误。
func NewTranscript(opts TranscriptOptions) *Transcript {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	cfg := opts.Window
	if cfg == (streamwindow.Config{}) {
		cfg = streamwindow.DefaultConfig()
	}
	t := &Transcript{
		id:       uuid.NewString(),
		cfg:      cfg,
		window:   streamwindow.NewState(),
		heights:  heightindex.New(nil),
		width:    width,
		onStable: opts.OnStable,
	}
	t.rows = history.New(opts.HistorySize, t.handleEvict)
	return t
}

func (t *Transcript) handleEvict(evicted []Row) {
	t.pending += len(evicted)
}

// ID 返回本次会话的标识，用于日志关联。
func (t *Transcript) ID() string { return t.id }

// Width 返回当前测量宽度。
func (t *Transcript) Width() int { return t.width }

// Heights 返回稳定行的高度索引。
func (t *Transcript) Heights() heightindex.State { return t.heights }

// Window 返回窗口当前状态。
func (t *Transcript) Window() streamwindow.State { return t.window }

// Len 返回保留的稳定行数。
func (t *Transcript) Len() int { return t.rows.Len() }

// RowText 返回第 i 个稳定行的文本，越界返回空串。
func (t *Transcript) RowText(i int) string {
	row, _ := t.rows.Get(i)
	return row.Text
}

// Rows 返回保留行的拷贝。
func (t *Transcript) Rows() []Row { return t.rows.ToArray() }

// Live 返回活跃区行。
func (t *Transcript) Live() []string { return t.window.Live() }

// Streaming 报告生产者是否仍在输出。
func (t *Transcript) Streaming() bool { return t.window.Streaming() }

// Stats 返回当前计数。
func (t *Transcript) Stats() Stats {
	return Stats{
		TotalLines: t.evicted + t.rows.Len() + t.window.LiveLen(),
		Retained:   t.rows.Len(),
		Live:       t.window.LiveLen(),
		Flushes:    t.window.FlushCount(),
		Evicted:    t.evicted,
		Height:     t.heights.TotalHeight(),
	}
}

// Append 追加新行（会先做 Sanitize），返回是否有变化。
func (t *Transcript) Append(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	clean := make([]string, len(lines))
	for i, line := range lines {
		clean[i] = tuirender.Sanitize(line)
	}
	return t.dispatch(streamwindow.AppendLines{Lines: clean})
}

// AppendText 把一段文本按换行拆分后追加。
func (t *Transcript) AppendText(text string) bool {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return false
	}
	return t.Append(strings.Split(text, "\n"))
}

// FlushStable 由外部定时器触发，手动 flush 一批。
func (t *Transcript) FlushStable() bool {
	return t.dispatch(streamwindow.FlushStable{})
}

// SetStreaming 更新生产者状态。
func (t *Transcript) SetStreaming(streaming bool) bool {
	return t.dispatch(streamwindow.SetStreaming{Streaming: streaming})
}

// Finish 在流结束时把剩余活跃行转为稳定行并重置窗口。
func (t *Transcript) Finish() bool {
	live := t.window.Live()
	changed := t.window.Streaming() || len(live) > 0
	t.window, _ = streamwindow.Reduce(t.window, streamwindow.Reset{}, t.cfg)
	t.stabilize(live)
	if changed {
		log.WithField("session", t.id).WithField("rows", t.rows.Len()).Info("stream finished")
	}
	return changed
}

// Reset 清空所有内容。清空不是淘汰，不计入 Evicted。
func (t *Transcript) Reset() {
	t.window = streamwindow.NewState()
	t.rows = t.rows.Clear()
	t.heights = heightindex.New(nil)
	t.evicted = 0
	t.pending = 0
}

// SetWidth 在终端宽度变化后重新测量全部稳定行。
func (t *Transcript) SetWidth(width int) bool {
	if width <= 0 || width == t.width {
		return false
	}
	t.width = width
	updates := make([]heightindex.Update, 0, t.rows.Len())
	t.rows.ForEach(func(row Row, i int) {
		updates = append(updates, heightindex.Update{Index: i, Height: tuirender.MeasureHeight(row.Text, width)})
	})
	var changed bool
	t.heights, changed = heightindex.BatchUpdateHeights(t.heights, updates)
	log.WithField("width", width).WithField("changed", changed).Info("re-measured rows")
	return changed
}

// AnchorAt 记录纵向偏移 offset 处的行。
func (t *Transcript) AnchorAt(offset int) Anchor {
	index, within := heightindex.Locate(t.heights, offset)
	row, ok := t.rows.Get(index)
	if !ok {
		return Anchor{}
	}
	return Anchor{Seq: row.Seq, Within: within, Valid: true}
}

// Resolve 返回锚点行当前的纵向偏移。锚点行已被淘汰时返回 false。
func (t *Transcript) Resolve(a Anchor) (int, bool) {
	index, ok := t.IndexOf(a.Seq)
	if !a.Valid || !ok {
		return 0, false
	}
	within := min(a.Within, max(heightindex.Height(t.heights, index)-1, 0))
	return heightindex.PrefixSum(t.heights, index) + within, true
}

// AnchorDelta 返回锚点行之前的高度相对 oldPrefix 的变化量，锚点行不存在时返回 0。
func (t *Transcript) AnchorDelta(seq uint64, oldPrefix int) int {
	index, ok := t.IndexOf(seq)
	if !ok {
		return 0
	}
	return heightindex.ComputeAnchorDelta(t.heights, oldPrefix, index)
}

// PrefixOf 返回 Seq 对应行之前的总高度。
func (t *Transcript) PrefixOf(seq uint64) (int, bool) {
	index, ok := t.IndexOf(seq)
	if !ok {
		return 0, false
	}
	return heightindex.PrefixSum(t.heights, index), true
}

// SearchHit 是一次模糊匹配结果。
type SearchHit struct {
	Index   int
	Seq     uint64
	Text    string
	Matched []int
	Score   int
}

// Search 在保留的稳定行中做模糊匹配，按得分从高到低返回最多 limit 个结果。
func (t *Transcript) Search(query string, limit int) []SearchHit {
	query = strings.TrimSpace(query)
	if query == "" || t.rows.Len() == 0 {
		return nil
	}
	texts := history.Map(t.rows, func(row Row, _ int) string { return row.Text })
	matches := fuzzy.Find(query, texts)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		row, _ := t.rows.Get(m.Index)
		hits = append(hits, SearchHit{
			Index:   m.Index,
			Seq:     row.Seq,
			Text:    m.Str,
			Matched: m.MatchedIndexes,
			Score:   m.Score,
		})
	}
	return hits
}

// IndexOf 返回 Seq 对应行当前的下标，该行已被淘汰时返回 false。
func (t *Transcript) IndexOf(seq uint64) (int, bool) {
	first, ok := t.rows.First()
	if !ok || seq < first.Seq {
		return 0, false
	}
	index := int(seq - first.Seq)
	if index >= t.rows.Len() {
		return 0, false
	}
	return index, true
}

func (t *Transcript) dispatch(action streamwindow.Action) bool {
	next, changed := streamwindow.Reduce(t.window, action, t.cfg)
	if !changed {
		return false
	}
	t.window = next
	if n := t.window.FlushedLen(); n > 0 {
		flushed := t.window.Flushed()
		t.window, _ = streamwindow.Reduce(t.window, streamwindow.TrimFlushed{Count: n}, t.cfg)
		t.stabilize(flushed)
	}
	return true
}

// stabilize 把行转存到 history 与高度索引，并同步淘汰。
func (t *Transcript) stabilize(lines []string) {
	if len(lines) == 0 {
		return
	}
	rows := make([]Row, len(lines))
	for i, line := range lines {
		rows[i] = Row{Seq: t.nextSeq, Text: line}
		t.nextSeq++
	}
	t.rows = t.rows.PushMany(rows)
	t.heights, _ = heightindex.AppendHeights(t.heights, tuirender.MeasureHeights(lines, t.width))

	evicted := t.pending
	t.pending = 0
	if evicted > 0 {
		t.heights, _ = heightindex.RemoveFromStart(t.heights, evicted)
		t.evicted += evicted
	}
	log.WithField("rows", len(rows)).WithField("evicted", evicted).WithField("retained", t.rows.Len()).Debug("stabilized rows")

	if t.onStable != nil {
		t.onStable(rows)
	}
}
