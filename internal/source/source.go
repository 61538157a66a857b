// Package source 提供把外部输出转为行批次的生产者。生产者运行在自己的 goroutine 中，
// 通过 channel 交付批次；消费方（渲染循环）在单线程里把批次喂给 Transcript。
package source

import (
	"bytes"
	"context"
	"io"

	"echo-render/internal/logger"
)

var log = logger.Named("source")

const readChunkSize = 32 * 1024

// Source 逐批产出行。Lines 在生产结束后关闭，随后 Wait 返回结束原因。
type Source interface {
	Lines() <-chan []string
	Wait() error
	Close() error
}

// lineSplitter 把任意切分的字节流还原为完整行，未结束的尾部保留到下一次。
type lineSplitter struct {
	partial []byte
}

func (s *lineSplitter) feed(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			s.partial = append(s.partial, chunk...)
			break
		}
		line := chunk[:i]
		if len(s.partial) > 0 {
			line = append(s.partial, line...)
			s.partial = nil
		}
		lines = append(lines, string(line))
		chunk = chunk[i+1:]
	}
	return lines
}

func (s *lineSplitter) flush() []string {
	if len(s.partial) == 0 {
		return nil
	}
	line := string(s.partial)
	s.partial = nil
	return []string{line}
}

// emitter 负责把批次送进 channel，ctx 结束后放弃发送。
type emitter struct {
	ctx context.Context
	out chan<- []string
}

func (e emitter) send(lines []string) bool {
	if len(lines) == 0 {
		return true
	}
	select {
	case e.out <- lines:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// offer 在 ctx 已结束后使用：channel 有空位就交付，否则放弃。
func (e emitter) offer(lines []string) bool {
	if len(lines) == 0 {
		return true
	}
	select {
	case e.out <- lines:
		return true
	default:
		return false
	}
}

// pump 读取 r 直到 EOF，每次 Read 得到的完整行作为一个批次发送。
// isEOF 用于识别特定来源的结束信号（例如 pty 在子进程退出后返回 EIO）。
func pump(e emitter, r io.Reader, isEOF func(error) bool) error {
	var split lineSplitter
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 && !e.send(split.feed(buf[:n])) {
			return e.ctx.Err()
		}
		if err != nil {
			e.send(split.flush())
			if err == io.EOF || (isEOF != nil && isEOF(err)) {
				return nil
			}
			return err
		}
	}
}

// Reader 把任意 io.Reader 作为来源，例如标准输入或管道。
type Reader struct {
	lines  chan []string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// NewReader 启动读取。
func NewReader(ctx context.Context, r io.Reader) *Reader {
	ctx, cancel := context.WithCancel(ctx)
	s := &Reader{
		lines:  make(chan []string, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.done)
		defer close(s.lines)
		s.err = pump(emitter{ctx: ctx, out: s.lines}, r, nil)
		if s.err != nil {
			log.WithError(s.err).Warn("reader source stopped")
		}
	}()
	return s
}

func (s *Reader) Lines() <-chan []string { return s.lines }

func (s *Reader) Wait() error {
	<-s.done
	return s.err
}

// Close 停止向 channel 发送；阻塞在 Read 中的底层读取只有在来源关闭后才会返回。
func (s *Reader) Close() error {
	s.cancel()
	return nil
}
