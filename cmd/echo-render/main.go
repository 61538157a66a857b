package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"echo-render/internal/logger"
)

var log = logger.Named("cli")

const usageText = `usage: echo-render [-c key=value]... [--config path] [--log-level level] <command> [args]

commands:
  run [--plain] [--dir dir] -- <cmd> [args]   run a command in a pty and view its output
  follow [--plain] [--from-start] <file>      follow a growing file
  cat [--plain] [file]                        view a file or standard input
  bench [flags]                               stream synthetic lines headlessly and print statistics
  config [show|path|init [--force]]           inspect or create the config file
`

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	root, rest, err := parseRootArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "parse args: %v\n\n%s", err, usageText)
		return 2
	}
	if len(rest) == 0 || rest[0] == "help" || rest[0] == "-h" || rest[0] == "--help" {
		fmt.Fprint(stdout, usageText)
		return 0
	}

	cfg, err := loadConfig(root)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := logger.Configure(cfg.LogLevel); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	if logFile, _, err := logger.SetupFile(cfg.LogPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch rest[0] {
	case "run":
		err = runMain(ctx, cfg, rest[1:])
	case "follow":
		err = followMain(ctx, cfg, rest[1:])
	case "cat":
		err = catMain(ctx, cfg, rest[1:])
	case "bench":
		err = runBench(cfg, rest[1:], stdout)
	case "config":
		err = configMain(cfg, rest[1:], stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", rest[0], usageText)
		return 2
	}
	if err != nil {
		log.WithError(err).WithField("command", rest[0]).Error("command failed")
		fmt.Fprintf(stderr, "echo-render %s: %v\n", rest[0], err)
		return 1
	}
	return 0
}
