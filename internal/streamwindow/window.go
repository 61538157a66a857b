// Package streamwindow 把只追加的行流划分为稳定区（flushed，可虚拟化）
// 与活跃区（live，每帧全量重绘），并根据渲染耗时自适应调节 flush 节奏。
package streamwindow

import (
	"errors"
	"fmt"
)

// 默认窗口参数：活跃区最多 500 行，达到 400 行（80%）开始 flush，每批 100 行。
const (
	DefaultLiveLimit      = 500
	DefaultFlushThreshold = 400
	DefaultFlushBatchSize = 100
)

// Config 控制活跃区的容量与 flush 批量。
type Config struct {
	LiveLimit      int
	FlushThreshold int
	FlushBatchSize int
}

// DefaultConfig 返回默认窗口参数。
func DefaultConfig() Config {
	return Config{
		LiveLimit:      DefaultLiveLimit,
		FlushThreshold: DefaultFlushThreshold,
		FlushBatchSize: DefaultFlushBatchSize,
	}
}

// Validate 检查参数组合是否可用。
func (c Config) Validate() error {
	if c.LiveLimit <= 0 {
		return fmt.Errorf("live limit must be positive, got %d", c.LiveLimit)
	}
	if c.FlushThreshold <= 0 || c.FlushThreshold > c.LiveLimit {
		return fmt.Errorf("flush threshold must be in (0, %d], got %d", c.LiveLimit, c.FlushThreshold)
	}
	if c.FlushBatchSize <= 0 {
		return errors.New("flush batch size must be positive")
	}
	return nil
}

// State 是窗口的不可变快照。零值即为初始状态。
type State struct {
	flushed    []string
	live       []string
	totalLines int
	flushCount int
	streaming  bool
}

// NewState 返回初始空状态。
func NewState() State { return State{} }

// Flushed 返回稳定区的拷贝。
func (s State) Flushed() []string { return append([]string(nil), s.flushed...) }

// Live 返回活跃区的拷贝。
func (s State) Live() []string { return append([]string(nil), s.live...) }

// FlushedLen 返回稳定区行数。
func (s State) FlushedLen() int { return len(s.flushed) }

// LiveLen 返回活跃区行数。
func (s State) LiveLen() int { return len(s.live) }

// TotalLines 恒等于 FlushedLen()+LiveLen()。
func (s State) TotalLines() int { return s.totalLines }

// FlushCount 返回已执行的 flush 批次数。
func (s State) FlushCount() int { return s.flushCount }

// Streaming 报告生产者是否仍在输出。
func (s State) Streaming() bool { return s.streaming }

// VisibleLines 按顺序返回稳定区与活跃区拼接后的全部行。
func VisibleLines(s State) []string {
	out := make([]string, 0, len(s.flushed)+len(s.live))
	out = append(out, s.flushed...)
	return append(out, s.live...)
}

// Action 是 Reduce 接受的动作。
type Action interface {
	isAction()
}

// AppendLines 追加新行，必要时自动 flush。
type AppendLines struct {
	Lines []string
}

// FlushStable 手动 flush 一批。
type FlushStable struct{}

// Reset 回到初始状态。
type Reset struct{}

// SetStreaming 设置生产者活跃标记。
type SetStreaming struct {
	Streaming bool
}

// TrimFlushed 释放最旧的 Count 行稳定区内容，供已把这些行转存到别处的调用方回收内存。
type TrimFlushed struct {
	Count int
}

func (AppendLines) isAction()  {}
func (FlushStable) isAction()  {}
func (Reset) isAction()        {}
func (SetStreaming) isAction() {}
func (TrimFlushed) isAction()  {}

// Reduce 应用一个动作。changed 为 false 时返回的就是输入状态。
func Reduce(s State, action Action, cfg Config) (State, bool) {
	switch a := action.(type) {
	case AppendLines:
		return appendLines(s, a.Lines, cfg)
	case FlushStable:
		return flushStable(s, cfg)
	case Reset:
		if s.totalLines == 0 && s.flushCount == 0 && !s.streaming {
			return s, false
		}
		return NewState(), true
	case SetStreaming:
		if s.streaming == a.Streaming {
			return s, false
		}
		s.streaming = a.Streaming
		return s, true
	case TrimFlushed:
		return trimFlushed(s, a.Count)
	default:
		return s, false
	}
}

func appendLines(s State, lines []string, cfg Config) (State, bool) {
	if len(lines) == 0 {
		return s, false
	}
	live := make([]string, 0, len(s.live)+len(lines))
	live = append(live, s.live...)
	live = append(live, lines...)
	s.live = live
	s.totalLines += len(lines)

	if len(s.live) < cfg.FlushThreshold {
		return s, true
	}
	// 至少 flush 一批，然后继续直到活跃区不超过上限。
	for {
		moved := moveBatch(&s, cfg.FlushBatchSize)
		if moved == 0 || len(s.live) <= cfg.LiveLimit {
			break
		}
	}
	return s, true
}

func flushStable(s State, cfg Config) (State, bool) {
	if len(s.live) < cfg.FlushThreshold {
		return s, false
	}
	if moveBatch(&s, cfg.FlushBatchSize) == 0 {
		return s, false
	}
	return s, true
}

// moveBatch 把最旧的 n 行活跃内容移入稳定区，返回实际移动行数。
func moveBatch(s *State, n int) int {
	n = min(n, len(s.live))
	if n <= 0 {
		return 0
	}
	flushed := make([]string, 0, len(s.flushed)+n)
	flushed = append(flushed, s.flushed...)
	s.flushed = append(flushed, s.live[:n]...)
	s.live = s.live[n:len(s.live):len(s.live)]
	s.flushCount++
	return n
}

func trimFlushed(s State, count int) (State, bool) {
	count = min(count, len(s.flushed))
	if count <= 0 {
		return s, false
	}
	s.flushed = s.flushed[count:len(s.flushed):len(s.flushed)]
	if len(s.flushed) == 0 {
		s.flushed = nil
	}
	s.totalLines -= count
	return s, true
}
