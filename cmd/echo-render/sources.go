package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"echo-render/internal/config"
	"echo-render/internal/source"

	"github.com/charmbracelet/x/term"
)

func runMain(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var dir string
	var plain bool
	fs.StringVar(&dir, "dir", "", "Working directory for the command")
	fs.BoolVar(&plain, "plain", false, "Write stable output to stdout instead of opening the viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cmdArgs := fs.Args()
	if len(cmdArgs) == 0 {
		return errors.New("missing command, e.g. echo-render run -- make test")
	}

	cols, rows := terminalSize()
	src, err := source.StartCommand(ctx, cmdArgs[0], cmdArgs[1:], source.CommandOptions{
		Dir:  dir,
		Cols: cols,
		Rows: max(rows-cfg.Viewport.LivePaneHeight, 1),
	})
	if err != nil {
		return err
	}
	return runViewer(cfg, src, viewerOptions{title: strings.Join(cmdArgs, " "), plain: plain})
}

func followMain(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("follow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var fromStart bool
	var plain bool
	fs.BoolVar(&fromStart, "from-start", false, "Show existing content before following")
	fs.BoolVar(&plain, "plain", false, "Write stable output to stdout instead of opening the viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("follow expects exactly one file")
	}
	path := fs.Arg(0)
	src, err := source.StartFollow(ctx, path, source.FollowOptions{FromStart: fromStart})
	if err != nil {
		return err
	}
	closeOnDone(ctx, src)
	return runViewer(cfg, src, viewerOptions{title: filepath.Base(path), plain: plain})
}

func catMain(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var plain bool
	fs.BoolVar(&plain, "plain", false, "Write stable output to stdout instead of opening the viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch fs.NArg() {
	case 0:
		if term.IsTerminal(os.Stdin.Fd()) {
			return errors.New("nothing to read: pipe input or pass a file")
		}
		src := source.NewReader(ctx, os.Stdin)
		return runViewer(cfg, src, viewerOptions{title: "stdin", plain: plain, inputTTY: true})
	case 1:
		path := fs.Arg(0)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		src := source.NewReader(ctx, f)
		return runViewer(cfg, src, viewerOptions{title: filepath.Base(path), plain: plain})
	default:
		return errors.New("cat expects at most one file")
	}
}
