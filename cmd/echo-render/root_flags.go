package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"echo-render/internal/config"
)

type rootArgs struct {
	overrides  []string
	configPath string
}

func parseRootArgs(args []string) (rootArgs, []string, error) {
	fs := flag.NewFlagSet("echo-render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var overrides stringSlice
	var cfgPath string
	var logLevel string
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.echo/render.toml)")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return rootArgs{}, nil, err
	}

	all := append([]string{}, overrides...)
	if strings.TrimSpace(logLevel) != "" {
		all = append(all, fmt.Sprintf("log_level=%s", strings.TrimSpace(logLevel)))
	}
	return rootArgs{overrides: all, configPath: cfgPath}, fs.Args(), nil
}

// loadConfig 按 默认值 < 文件 < 环境变量 < -c 的顺序合并配置。
func loadConfig(root rootArgs) (config.Config, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return cfg, err
	}
	cfg = config.ApplyKVOverrides(cfg, root.overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", cfg.Source, err)
	}
	return cfg, nil
}
