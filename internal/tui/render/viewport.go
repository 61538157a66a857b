package render

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// LiveViewport 包装 bubbles viewport，承载仍在变化、每帧全量重绘的活跃行。
// 内容未变化时跳过 SetContent，追加内容时保持贴底。
type LiveViewport struct {
	viewport.Model
	lastLines []string
}

// NewLiveViewport 创建活跃区视口。
func NewLiveViewport(width, height int) LiveViewport {
	return LiveViewport{Model: viewport.New(width, height)}
}

// Resize 更新宽高；宽度变化时需要重新换行。
func (v *LiveViewport) Resize(width, height int) {
	if v == nil {
		return
	}
	if v.Width == width && v.Height == height {
		return
	}
	widthChanged := v.Width != width
	v.Width = width
	v.Height = height
	if widthChanged {
		lines := v.lastLines
		v.Invalidate()
		v.SetLines(lines)
	}
}

// HandleUpdate 代理 bubbles 的 Update，保持内部状态。
func (v *LiveViewport) HandleUpdate(msg tea.Msg) tea.Cmd {
	if v == nil {
		return nil
	}
	var cmd tea.Cmd
	v.Model, cmd = v.Model.Update(msg)
	return cmd
}

// SetLines 更新内容，返回内容是否变化。
func (v *LiveViewport) SetLines(lines []string) bool {
	if v == nil {
		return false
	}
	if v.lastLines != nil && slices.Equal(lines, v.lastLines) {
		return false
	}

	stickToBottom := v.AtBottom() || v.lastLines == nil
	v.lastLines = append([]string{}, lines...)

	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		wrapped = append(wrapped, WrapLine(line, v.Width)...)
	}
	v.SetContent(strings.Join(wrapped, "\n"))
	if stickToBottom {
		v.GotoBottom()
	}
	return true
}

// DropFront 在头部 n 行离开活跃区之前调用：未贴底时按这些行换行后的高度回退 YOffset，
// 正在查看的内容不随 flush 上移。
func (v *LiveViewport) DropFront(n int) {
	if v == nil || n <= 0 || v.lastLines == nil || v.AtBottom() {
		return
	}
	rows := 0
	for _, line := range v.lastLines[:min(n, len(v.lastLines))] {
		rows += MeasureHeight(line, v.Width)
	}
	v.SetYOffset(max(v.YOffset-rows, 0))
}

// Invalidate 清空已缓存的行，强制下次 SetLines 重新布局。
func (v *LiveViewport) Invalidate() {
	if v == nil {
		return
	}
	v.lastLines = nil
}
