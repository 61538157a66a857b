package repl

import (
	"bufio"
	"io"
	"os"
)

// Scrollback 把已稳定的行直接写入终端自然滚动缓冲（或任意 io.Writer），
// 用于不启动 TUI 的纯文本输出。活跃区内容不会被写出，直到它们被 flush 或 Finish。
type Scrollback struct {
	w       *bufio.Writer
	written int
	err     error
}

func NewScrollback(w io.Writer) *Scrollback {
	if w == nil {
		w = os.Stdout
	}
	return &Scrollback{w: bufio.NewWriter(w)}
}

// AppendRows 写出一批稳定行，可直接作为 TranscriptOptions.OnStable。
// 首次写入失败后后续调用都会被忽略，错误由 Flush 返回。
func (s *Scrollback) AppendRows(rows []Row) {
	if s == nil || s.err != nil {
		return
	}
	for _, row := range rows {
		if _, err := s.w.WriteString(row.Text + "\n"); err != nil {
			s.err = err
			return
		}
		s.written++
	}
}

// Written 返回已写出的行数。
func (s *Scrollback) Written() int {
	if s == nil {
		return 0
	}
	return s.written
}

// Flush 刷新缓冲并返回首个写入错误。
func (s *Scrollback) Flush() error {
	if s == nil {
		return nil
	}
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}
