package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"echo-render/internal/streamwindow"

	"github.com/pelletier/go-toml/v2"
)

// 环境变量覆盖项，优先级高于配置文件、低于 -c 覆盖。
const (
	EnvHistoryRows = "ECHO_RENDER_HISTORY"
	EnvLiveLimit   = "ECHO_RENDER_LIVE_LIMIT"
)

// Config is the persisted render settings schema.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Budget   BudgetConfig   `toml:"budget"`
	History  HistoryConfig  `toml:"history"`
	Viewport ViewportConfig `toml:"viewport"`
	LogPath  string         `toml:"log_path"`
	LogLevel string         `toml:"log_level"`
	Source   string         `toml:"-"`
}

// WindowConfig 对应 streamwindow.Config。
type WindowConfig struct {
	LiveLimit      int `toml:"live_limit"`
	FlushThreshold int `toml:"flush_threshold"`
	FlushBatchSize int `toml:"flush_batch_size"`
}

// BudgetConfig 以毫秒描述自适应 flush 间隔。
type BudgetConfig struct {
	InitialMs int     `toml:"initial_ms"`
	MinMs     int     `toml:"min_ms"`
	MaxMs     int     `toml:"max_ms"`
	SlowMs    int     `toml:"slow_ms"`
	FastMs    int     `toml:"fast_ms"`
	Backoff   float64 `toml:"backoff"`
	Speedup   float64 `toml:"speedup"`
}

// HistoryConfig 限制保留的稳定行数。
type HistoryConfig struct {
	MaxRows int `toml:"max_rows"`
}

// ViewportConfig 控制终端布局。
type ViewportConfig struct {
	LivePaneHeight int  `toml:"live_pane_height"`
	Follow         bool `toml:"follow"`
}

func Default() Config {
	win := streamwindow.DefaultConfig()
	budget := streamwindow.DefaultBudgetConfig()
	return Config{
		Window: WindowConfig{
			LiveLimit:      win.LiveLimit,
			FlushThreshold: win.FlushThreshold,
			FlushBatchSize: win.FlushBatchSize,
		},
		Budget: BudgetConfig{
			InitialMs: int(budget.InitialInterval / time.Millisecond),
			MinMs:     int(budget.MinInterval / time.Millisecond),
			MaxMs:     int(budget.MaxInterval / time.Millisecond),
			SlowMs:    int(budget.SlowRender / time.Millisecond),
			FastMs:    int(budget.FastRender / time.Millisecond),
			Backoff:   budget.Backoff,
			Speedup:   budget.Speedup,
		},
		History:  HistoryConfig{MaxRows: 500},
		Viewport: ViewportConfig{LivePaneHeight: 8, Follow: true},
		LogPath:  "logs/echo-render.log",
		LogLevel: "info",
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".echo", "render.toml")
}

// Load 读取配置文件；文件不存在时使用默认值。随后应用环境变量覆盖。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if n, ok := envInt(EnvHistoryRows); ok {
		cfg.History.MaxRows = n
	}
	if n, ok := envInt(EnvLiveLimit); ok {
		cfg.Window.LiveLimit = n
	}
	return cfg
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate 检查组合后的配置。
func (c Config) Validate() error {
	if err := c.StreamWindow().Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.History.MaxRows < 0 {
		return fmt.Errorf("history: max_rows must not be negative, got %d", c.History.MaxRows)
	}
	b := c.RenderBudget()
	if b.MinInterval <= 0 || b.MaxInterval < b.MinInterval {
		return fmt.Errorf("budget: invalid interval range [%s, %s]", b.MinInterval, b.MaxInterval)
	}
	if b.FastRender > b.SlowRender {
		return fmt.Errorf("budget: fast_ms %d exceeds slow_ms %d", c.Budget.FastMs, c.Budget.SlowMs)
	}
	if b.Backoff < 1 || b.Speedup <= 0 || b.Speedup > 1 {
		return fmt.Errorf("budget: backoff must be >= 1 and speedup in (0, 1], got %v/%v", b.Backoff, b.Speedup)
	}
	return nil
}

// StreamWindow 转换为窗口参数。
func (c Config) StreamWindow() streamwindow.Config {
	return streamwindow.Config{
		LiveLimit:      c.Window.LiveLimit,
		FlushThreshold: c.Window.FlushThreshold,
		FlushBatchSize: c.Window.FlushBatchSize,
	}
}

// RenderBudget 转换为预算控制参数。
func (c Config) RenderBudget() streamwindow.BudgetConfig {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return streamwindow.BudgetConfig{
		SlowRender:      ms(c.Budget.SlowMs),
		FastRender:      ms(c.Budget.FastMs),
		Backoff:         c.Budget.Backoff,
		Speedup:         c.Budget.Speedup,
		MinInterval:     ms(c.Budget.MinMs),
		MaxInterval:     ms(c.Budget.MaxMs),
		InitialInterval: ms(c.Budget.InitialMs),
	}
}
