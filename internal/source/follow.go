package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FollowOptions 控制文件跟随的起点。
type FollowOptions struct {
	// FromStart 为 true 时先交付文件已有内容，否则只交付之后追加的内容。
	FromStart bool
}

// Follow 跟随一个不断增长的文件，类似 tail -f。文件被删除或改名时结束。
type Follow struct {
	path   string
	file   *os.File
	lines  chan []string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// StartFollow 打开 path 并开始监听写入。
func StartFollow(ctx context.Context, path string, opts FollowOptions) (*Follow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !opts.FromStart {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			file.Close()
			return nil, fmt.Errorf("seek %s: %w", path, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// 监听所在目录，删除与改名事件才能可靠送达。
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f := &Follow{
		path:   path,
		file:   file,
		lines:  make(chan []string, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go f.loop(ctx, watcher)
	return f, nil
}

func (f *Follow) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(f.done)
	defer close(f.lines)
	defer f.file.Close()
	defer watcher.Close()

	entry := log.WithField("path", f.path)
	entry.Info("following file")

	out := emitter{ctx: ctx, out: f.lines}
	var split lineSplitter
	target := filepath.Clean(f.path)

	drain := func() bool {
		if f.truncated() {
			entry.Info("followed file truncated, reading from start")
			if !out.send(split.flush()) {
				return false
			}
			if _, err := f.file.Seek(0, io.SeekStart); err != nil {
				f.err = fmt.Errorf("seek %s: %w", f.path, err)
				return false
			}
		}
		buf := make([]byte, readChunkSize)
		for {
			n, err := f.file.Read(buf)
			if n > 0 && !out.send(split.feed(buf[:n])) {
				return false
			}
			if errors.Is(err, io.EOF) || n == 0 {
				return true
			}
			if err != nil {
				f.err = fmt.Errorf("read %s: %w", f.path, err)
				return false
			}
		}
	}

	if !drain() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			out.offer(split.flush())
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			switch {
			case event.Has(fsnotify.Write):
				if !drain() {
					return
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				entry.WithField("op", event.Op.String()).Info("followed file went away")
				drain()
				out.send(split.flush())
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			entry.WithError(err).Warn("watcher error")
		}
	}
}

// truncated 报告文件是否被原地截断（大小小于当前读取位置）。
func (f *Follow) truncated() bool {
	info, err := f.file.Stat()
	if err != nil {
		return false
	}
	offset, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	return info.Size() < offset
}

func (f *Follow) Lines() <-chan []string { return f.lines }

func (f *Follow) Wait() error {
	<-f.done
	return f.err
}

// Close 停止跟随。尚未以换行结尾的内容在 channel 还有空位时作为最后一行交付。
func (f *Follow) Close() error {
	f.cancel()
	return nil
}
