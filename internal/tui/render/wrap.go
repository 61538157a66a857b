package render

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

const tabWidth = 4

// Sanitize 把生产者输出的原始行整理为可测量的纯文本：去掉 ANSI 序列，
// 按回车语义只保留最后一次覆盖的内容，并展开制表符。
func Sanitize(line string) string {
	line = ansi.Strip(line)
	line = strings.TrimRight(line, "\r\n")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	if strings.IndexByte(line, '\t') >= 0 {
		line = strings.ReplaceAll(line, "\t", strings.Repeat(" ", tabWidth))
	}
	return line
}

// WrapLine 按终端单元宽度硬换行。宽度不足以容纳单个宽字符时该字符独占一行。
func WrapLine(text string, width int) []string {
	var out []string
	walkRows(text, width, func(start, end int) {
		out = append(out, text[start:end])
	})
	return out
}

// MeasureHeight 返回 text 在给定宽度下占用的行数，与 WrapLine 的结果一致，最少 1 行。
func MeasureHeight(text string, width int) int {
	rows := 0
	walkRows(text, width, func(int, int) { rows++ })
	return rows
}

// MeasureHeights 批量测量。
func MeasureHeights(lines []string, width int) []int {
	out := make([]int, len(lines))
	for i, line := range lines {
		out[i] = MeasureHeight(line, width)
	}
	return out
}

func walkRows(text string, width int, emit func(start, end int)) {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		emit(0, len(text))
		return
	}
	start, cells := 0, 0
	for i, r := range text {
		rw := runewidth.RuneWidth(r)
		if cells > 0 && cells+rw > width {
			emit(start, i)
			start, cells = i, 0
		}
		cells += rw
	}
	emit(start, len(text))
}
