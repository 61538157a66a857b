package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
// Unknown keys and unparsable values are skipped.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "window.live_limit":
			setInt(&cfg.Window.LiveLimit, val)
		case "window.flush_threshold":
			setInt(&cfg.Window.FlushThreshold, val)
		case "window.flush_batch_size":
			setInt(&cfg.Window.FlushBatchSize, val)
		case "budget.initial_ms":
			setInt(&cfg.Budget.InitialMs, val)
		case "budget.min_ms":
			setInt(&cfg.Budget.MinMs, val)
		case "budget.max_ms":
			setInt(&cfg.Budget.MaxMs, val)
		case "budget.slow_ms":
			setInt(&cfg.Budget.SlowMs, val)
		case "budget.fast_ms":
			setInt(&cfg.Budget.FastMs, val)
		case "budget.backoff":
			setFloat(&cfg.Budget.Backoff, val)
		case "budget.speedup":
			setFloat(&cfg.Budget.Speedup, val)
		case "history.max_rows":
			setInt(&cfg.History.MaxRows, val)
		case "viewport.live_pane_height":
			setInt(&cfg.Viewport.LivePaneHeight, val)
		case "viewport.follow":
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.Viewport.Follow = b
			}
		case "log_path":
			cfg.LogPath = val
		case "log_level":
			cfg.LogLevel = val
		}
	}
	return cfg
}

func setInt(dst *int, val string) {
	if n, err := strconv.Atoi(val); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, val string) {
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		*dst = f
	}
}
