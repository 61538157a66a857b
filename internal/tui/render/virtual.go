package render

import (
	"echo-render/internal/heightindex"
)

// VirtualViewport 是覆盖在 heightindex 上的窗口：只渲染与可视区相交的行。
// offset 以终端行为单位；follow 为 true 时内容增长后自动贴底。
type VirtualViewport struct {
	width  int
	height int
	offset int
	follow bool
}

// NewVirtualViewport 创建默认贴底的虚拟视口。
func NewVirtualViewport(width, height int) VirtualViewport {
	return VirtualViewport{width: max(width, 0), height: max(height, 0), follow: true}
}

func (v *VirtualViewport) Width() int      { return v.width }
func (v *VirtualViewport) Height() int     { return v.height }
func (v *VirtualViewport) Offset() int     { return v.offset }
func (v *VirtualViewport) Following() bool { return v.follow }

// SetSize 更新尺寸，随后需要 Sync。
func (v *VirtualViewport) SetSize(width, height int) {
	v.width = max(width, 0)
	v.height = max(height, 0)
}

// SetFollow 打开或关闭贴底跟随。
func (v *VirtualViewport) SetFollow(follow bool, idx heightindex.State) {
	v.follow = follow
	v.Sync(idx)
}

// Sync 在内容变化后把 offset 钳制到合法范围，跟随模式下贴底。
func (v *VirtualViewport) Sync(idx heightindex.State) {
	if v.follow {
		v.offset = v.maxOffset(idx)
		return
	}
	v.offset = min(max(v.offset, 0), v.maxOffset(idx))
}

// SetOffset 直接设置 offset，用于锚点恢复；到达底部时恢复跟随。
func (v *VirtualViewport) SetOffset(offset int, idx heightindex.State) {
	v.follow = false
	v.offset = offset
	v.Sync(idx)
	v.follow = v.AtBottom(idx)
}

// ScrollBy 相对滚动 n 行，负数向上。
func (v *VirtualViewport) ScrollBy(n int, idx heightindex.State) {
	if n == 0 {
		return
	}
	v.SetOffset(v.offset+n, idx)
}

// PageDown 下翻一页。
func (v *VirtualViewport) PageDown(idx heightindex.State) { v.ScrollBy(max(v.height, 1), idx) }

// PageUp 上翻一页。
func (v *VirtualViewport) PageUp(idx heightindex.State) { v.ScrollBy(-max(v.height, 1), idx) }

// GotoTop 跳到顶部并停止跟随。
func (v *VirtualViewport) GotoTop(idx heightindex.State) {
	v.follow = false
	v.offset = 0
	v.Sync(idx)
}

// GotoBottom 跳到底部并恢复跟随。
func (v *VirtualViewport) GotoBottom(idx heightindex.State) {
	v.follow = true
	v.Sync(idx)
}

// ScrollToRow 让第 row 行出现在视口顶部。
func (v *VirtualViewport) ScrollToRow(row int, idx heightindex.State) {
	v.SetOffset(heightindex.PrefixSum(idx, row), idx)
}

// AtBottom 报告视口是否已显示最后一行。
func (v *VirtualViewport) AtBottom(idx heightindex.State) bool {
	return v.offset >= v.maxOffset(idx)
}

// Window 返回可视行区间 [start, end) 以及首行需要跳过的终端行数。
func (v *VirtualViewport) Window(idx heightindex.State) (start, end, skip int) {
	start, end = heightindex.VisibleRange(idx, v.offset, v.height)
	if start >= end {
		return start, end, 0
	}
	return start, end, v.offset - heightindex.PrefixSum(idx, start)
}

// Render 只对可视区间内的行换行并裁剪到视口高度。row 按下标返回行文本。
func (v *VirtualViewport) Render(idx heightindex.State, row func(i int) string) []string {
	start, end, skip := v.Window(idx)
	out := make([]string, 0, v.height)
	for i := start; i < end && len(out) < v.height; i++ {
		wrapped := WrapLine(row(i), v.width)
		if i == start {
			wrapped = wrapped[min(skip, len(wrapped)):]
		}
		for _, line := range wrapped {
			if len(out) == v.height {
				break
			}
			out = append(out, line)
		}
	}
	return out
}

func (v *VirtualViewport) maxOffset(idx heightindex.State) int {
	return max(0, idx.TotalHeight()-v.height)
}
