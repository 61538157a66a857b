package render

import (
	"github.com/charmbracelet/lipgloss"
)

// HighlightMatches 把 text 中位于 matched（字节下标，升序）的字符用 style 标出，
// 其余部分合并为无样式的 Span。
func HighlightMatches(text string, matched []int, style lipgloss.Style) Line {
	if len(matched) == 0 {
		return PlainLine(text)
	}
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}

	var spans []Span
	start, inHit := 0, false
	for i := range text {
		h := hit[i]
		if i > start && h != inHit {
			spans = append(spans, spanFor(text[start:i], inHit, style))
			start = i
		}
		inHit = h
	}
	if start < len(text) {
		spans = append(spans, spanFor(text[start:], inHit, style))
	}
	return Line{Spans: spans}
}

func spanFor(text string, highlighted bool, style lipgloss.Style) Span {
	if highlighted {
		return Span{Text: text, Style: style}
	}
	return Span{Text: text}
}
