package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"
)

// CommandOptions 配置子进程及其伪终端尺寸。
type CommandOptions struct {
	Dir  string
	Env  []string
	Cols int
	Rows int
}

// Command 在伪终端中运行子进程，按行交付其输出。
type Command struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	lines  chan []string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// StartCommand 启动子进程。ctx 结束时子进程被杀死。
func StartCommand(ctx context.Context, name string, args []string, opts CommandOptions) (*Command, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("empty command")
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	ptmx, err := pty.StartWithSize(cmd, winsize(opts.Cols, opts.Rows))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start pty: %w", err)
	}

	c := &Command{
		cmd:    cmd,
		ptmx:   ptmx,
		lines:  make(chan []string, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	entry := log.WithField("cmd", name).WithField("pid", cmd.Process.Pid)
	entry.Info("command started")

	go func() {
		defer close(c.done)
		defer close(c.lines)
		readErr := pump(emitter{ctx: ctx, out: c.lines}, ptmx, isPtyEOF)
		waitErr := cmd.Wait()
		ptmx.Close()
		switch {
		case waitErr != nil:
			c.err = fmt.Errorf("command failed: %w", waitErr)
		case readErr != nil:
			c.err = fmt.Errorf("read pty: %w", readErr)
		}
		entry.WithField("exit", cmd.ProcessState.ExitCode()).Info("command exited")
	}()
	return c, nil
}

func (c *Command) Lines() <-chan []string { return c.lines }

func (c *Command) Wait() error {
	<-c.done
	return c.err
}

// Close 终止子进程。
func (c *Command) Close() error {
	c.cancel()
	return nil
}

// Resize 同步伪终端尺寸，子进程会收到 SIGWINCH。
func (c *Command) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	return pty.Setsize(c.ptmx, winsize(cols, rows))
}

// ExitCode 返回子进程退出码，尚未退出时返回 -1。
func (c *Command) ExitCode() int {
	select {
	case <-c.done:
	default:
		return -1
	}
	if c.cmd.ProcessState == nil {
		return -1
	}
	return c.cmd.ProcessState.ExitCode()
}

func winsize(cols, rows int) *pty.Winsize {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
}

// Linux 上子进程退出后读取 pty 主端返回 EIO，等价于 EOF。
func isPtyEOF(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
