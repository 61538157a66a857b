package render

import (
	"fmt"
	"slices"
	"testing"

	"echo-render/internal/heightindex"
)

func rowsOf(lines []string) func(int) string {
	return func(i int) string { return lines[i] }
}

func TestVirtualViewportRendersVisibleSliceOnly(t *testing.T) {
	lines := []string{"aaaa", "bbbbbbbb", "cc", "dddddd", "e"}
	idx := heightindex.New(MeasureHeights(lines, 4)) // 1,2,1,2,1

	vp := NewVirtualViewport(4, 3)
	vp.GotoTop(idx)

	var asked []int
	row := func(i int) string {
		asked = append(asked, i)
		return lines[i]
	}
	got := vp.Render(idx, row)
	if want := []string{"aaaa", "bbbb", "bbbb"}; !slices.Equal(got, want) {
		t.Fatalf("Render()=%q want %q", got, want)
	}
	if !slices.Equal(asked, []int{0, 1}) {
		t.Fatalf("rendered rows %v, want only [0 1]", asked)
	}

	vp.ScrollBy(2, idx)
	start, end, skip := vp.Window(idx)
	if start != 1 || end != 4 || skip != 1 {
		t.Fatalf("Window()=(%d,%d,%d) want (1,4,1)", start, end, skip)
	}
	got = vp.Render(idx, rowsOf(lines))
	if want := []string{"bbbb", "cc", "dddd"}; !slices.Equal(got, want) {
		t.Fatalf("Render() after scroll=%q want %q", got, want)
	}
}

func TestVirtualViewportFollow(t *testing.T) {
	var lines []string
	idx := heightindex.New(nil)
	vp := NewVirtualViewport(10, 3)

	for i := 0; i < 10; i++ {
		line := fmt.Sprintf("row %d", i)
		lines = append(lines, line)
		idx, _ = heightindex.AppendHeights(idx, []int{1})
		vp.Sync(idx)
	}
	if !vp.Following() || !vp.AtBottom(idx) {
		t.Fatalf("viewport should follow appended rows")
	}
	if got := vp.Render(idx, rowsOf(lines)); !slices.Equal(got, []string{"row 7", "row 8", "row 9"}) {
		t.Fatalf("Render()=%q", got)
	}

	vp.ScrollBy(-2, idx)
	if vp.Following() {
		t.Fatalf("scrolling up should stop following")
	}
	idx, _ = heightindex.AppendHeights(idx, []int{1, 1})
	vp.Sync(idx)
	if vp.Offset() != 5 {
		t.Fatalf("offset moved while not following: %d", vp.Offset())
	}

	vp.PageDown(idx)
	vp.PageDown(idx)
	if !vp.Following() {
		t.Fatalf("reaching the bottom should resume following")
	}
}

func TestVirtualViewportClampsAndJumps(t *testing.T) {
	idx := heightindex.New([]int{1, 1, 1, 1, 1, 1})
	vp := NewVirtualViewport(5, 2)

	vp.SetOffset(100, idx)
	if vp.Offset() != 4 {
		t.Fatalf("offset=%d want clamp to 4", vp.Offset())
	}
	vp.SetOffset(-3, idx)
	if vp.Offset() != 0 {
		t.Fatalf("offset=%d want clamp to 0", vp.Offset())
	}
	vp.ScrollToRow(3, idx)
	if vp.Offset() != 3 || vp.Following() {
		t.Fatalf("ScrollToRow: offset=%d following=%v", vp.Offset(), vp.Following())
	}
	vp.GotoBottom(idx)
	if vp.Offset() != 4 || !vp.Following() {
		t.Fatalf("GotoBottom: offset=%d following=%v", vp.Offset(), vp.Following())
	}
	if got := vp.Render(heightindex.New(nil), rowsOf(nil)); len(got) != 0 {
		t.Fatalf("empty index should render nothing, got %q", got)
	}
}
