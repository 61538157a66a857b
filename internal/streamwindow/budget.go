package streamwindow

import (
	"math"
	"time"
)

// BudgetConfig 描述乘性增减控制器的参数。
type BudgetConfig struct {
	// 渲染耗时超过 SlowRender 时按 Backoff 放大间隔，低于 FastRender 时按 Speedup 缩小。
	SlowRender time.Duration
	FastRender time.Duration
	Backoff    float64
	Speedup    float64

	MinInterval     time.Duration
	MaxInterval     time.Duration
	InitialInterval time.Duration
}

// DefaultBudgetConfig 返回默认控制参数。
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		SlowRender:      8 * time.Millisecond,
		FastRender:      4 * time.Millisecond,
		Backoff:         1.5,
		Speedup:         0.8,
		MinInterval:     16 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		InitialInterval: 50 * time.Millisecond,
	}
}

// Budget 记录最近一次渲染耗时与当前的 flush 间隔。它只决定外部调度器多久触发
// 一次 FlushStable，不属于窗口状态本身。
type Budget struct {
	LastRenderTime time.Duration
	FlushInterval  time.Duration
}

// NewBudget 以配置中的初始间隔创建预算，并钳制到 [MinInterval, MaxInterval]。
func NewBudget(cfg BudgetConfig) Budget {
	return Budget{FlushInterval: clampInterval(cfg.InitialInterval, cfg)}
}

// UpdateRenderBudget 根据实测渲染耗时调整 flush 间隔：渲染慢则退避，渲染快则加速，
// 其余情况保持不变；结果总是落在 [MinInterval, MaxInterval] 内。
func UpdateRenderBudget(b Budget, measured time.Duration, cfg BudgetConfig) Budget {
	interval := b.FlushInterval
	switch {
	case measured > cfg.SlowRender:
		interval = scale(interval, cfg.Backoff)
	case measured < cfg.FastRender:
		interval = scale(interval, cfg.Speedup)
	}
	return Budget{
		LastRenderTime: measured,
		FlushInterval:  clampInterval(interval, cfg),
	}
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(math.Round(float64(d) * factor))
}

func clampInterval(d time.Duration, cfg BudgetConfig) time.Duration {
	if cfg.MaxInterval > 0 && d > cfg.MaxInterval {
		d = cfg.MaxInterval
	}
	if d < cfg.MinInterval {
		d = cfg.MinInterval
	}
	return d
}
