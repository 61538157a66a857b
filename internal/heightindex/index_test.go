package heightindex

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func sum(hs []int) int {
	total := 0
	for _, h := range hs {
		total += h
	}
	return total
}

func naivePrefix(hs []int, index int) int {
	if index <= 0 {
		return 0
	}
	if index > len(hs) {
		index = len(hs)
	}
	return sum(hs[:index])
}

func requireConsistent(t *testing.T, s State, want []int) {
	t.Helper()
	require.Equal(t, len(want), s.Len())
	require.Equal(t, sum(want), s.TotalHeight())
	require.Equal(t, s.TotalHeight(), sum(s.BlockSums()))
	require.Len(t, s.BlockSums(), (len(want)+BlockSize-1)/BlockSize)
	if len(want) == 0 {
		require.Empty(t, s.Heights())
	} else {
		require.Equal(t, want, s.Heights())
	}
	for i := 0; i <= len(want); i++ {
		require.Equal(t, naivePrefix(want, i), PrefixSum(s, i), "prefix at %d", i)
	}
}

func randomHeights(r *rand.Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = r.Intn(6)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		heights []int
	}{
		{name: "empty", heights: nil},
		{name: "single", heights: []int{3}},
		{name: "exact block", heights: randomHeights(rand.New(rand.NewSource(1)), BlockSize)},
		{name: "partial tail", heights: randomHeights(rand.New(rand.NewSource(2)), 3*BlockSize+7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireConsistent(t, New(tt.heights), tt.heights)
		})
	}
}

func TestNewClampsNegativeHeights(t *testing.T) {
	s := New([]int{-4, 2})
	require.Equal(t, []int{0, 2}, s.Heights())
	require.Equal(t, 2, s.TotalHeight())
}

func TestPrefixSumBoundsAndMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	hs := randomHeights(r, 200)
	s := New(hs)

	require.Equal(t, 0, PrefixSum(s, -5))
	require.Equal(t, 0, PrefixSum(s, 0))
	require.Equal(t, sum(hs), PrefixSum(s, len(hs)))
	require.Equal(t, sum(hs), PrefixSum(s, len(hs)+100))

	prev := 0
	for i := 0; i <= len(hs); i++ {
		cur := PrefixSum(s, i)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestUpdateHeightScenario(t *testing.T) {
	s := New([]int{10, 20, 30})
	next, changed := UpdateHeight(s, 1, 25)
	require.True(t, changed)
	require.Equal(t, 65, next.TotalHeight())
	require.Equal(t, 35, PrefixSum(next, 2))
	require.Equal(t, 65, PrefixSum(next, 3))

	// the original snapshot is untouched
	require.Equal(t, []int{10, 20, 30}, s.Heights())
	require.Equal(t, 60, s.TotalHeight())
}

func TestUpdateHeightNoop(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	hs := randomHeights(r, 70)
	s := New(hs)

	for i := 0; i < len(hs); i++ {
		_, changed := UpdateHeight(s, i, Height(s, i))
		require.False(t, changed, "same height at %d", i)
	}
	for _, idx := range []int{-1, len(hs), len(hs) + 10} {
		next, changed := UpdateHeight(s, idx, 99)
		require.False(t, changed)
		require.Equal(t, s.TotalHeight(), next.TotalHeight())
	}
}

func TestUpdateHeightSharesUntouchedBlocks(t *testing.T) {
	s := New(make([]int, 3*BlockSize))
	next, _ := UpdateHeight(s, BlockSize+1, 4)
	require.Equal(t, 0, Height(s, BlockSize+1))
	require.Equal(t, 4, Height(next, BlockSize+1))
	require.Same(t, &s.blocks[0][0], &next.blocks[0][0])
	require.NotSame(t, &s.blocks[1][0], &next.blocks[1][0])
}

func TestHeightOutOfRange(t *testing.T) {
	s := New([]int{1, 2})
	require.Equal(t, 0, Height(s, -1))
	require.Equal(t, 0, Height(s, 2))
	require.Equal(t, 2, Height(s, 1))
}

func TestBatchUpdateHeights(t *testing.T) {
	base := []int{1, 1, 1, 1, 1}
	tests := []struct {
		name    string
		updates []Update
		want    []int
		changed bool
	}{
		{
			name:    "empty",
			updates: nil,
			want:    base,
		},
		{
			name:    "invalid indices only",
			updates: []Update{{Index: -1, Height: 5}, {Index: 5, Height: 5}},
			want:    base,
		},
		{
			name:    "last write wins",
			updates: []Update{{Index: 2, Height: 9}, {Index: 2, Height: 4}},
			want:    []int{1, 1, 4, 1, 1},
			changed: true,
		},
		{
			name:    "dedup back to current value",
			updates: []Update{{Index: 0, Height: 7}, {Index: 0, Height: 1}},
			want:    base,
		},
		{
			name:    "swap within block keeps block sum",
			updates: []Update{{Index: 0, Height: 2}, {Index: 1, Height: 0}},
			want:    []int{2, 0, 1, 1, 1},
			changed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(base)
			next, changed := BatchUpdateHeights(s, tt.updates)
			require.Equal(t, tt.changed, changed)
			requireConsistent(t, next, tt.want)
			requireConsistent(t, s, base)
		})
	}
}

func TestBatchUpdateMatchesSequentialUpdates(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	hs := randomHeights(r, 150)
	s := New(hs)

	updates := make([]Update, 400)
	for i := range updates {
		updates[i] = Update{Index: r.Intn(170) - 10, Height: r.Intn(8)}
	}
	batched, _ := BatchUpdateHeights(s, updates)

	seq := s
	for _, u := range updates {
		seq, _ = UpdateHeight(seq, u.Index, u.Height)
	}
	requireConsistent(t, batched, seq.Heights())
}

func TestAppendHeights(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	var want []int
	s := New(nil)

	_, changed := AppendHeights(s, nil)
	require.False(t, changed)

	for _, n := range []int{1, 30, 1, 33, 64, 5} {
		batch := randomHeights(r, n)
		prev := s
		prevHeights := prev.Heights()

		var ok bool
		s, ok = AppendHeights(s, batch)
		require.True(t, ok)
		want = append(want, batch...)
		requireConsistent(t, s, want)
		requireConsistent(t, prev, prevHeights)
	}
}

func TestAppendDoesNotAliasSiblingVersions(t *testing.T) {
	base, _ := AppendHeights(New(nil), []int{1, 2, 3})
	a, _ := AppendHeights(base, []int{10})
	b, _ := AppendHeights(base, []int{20})
	require.Equal(t, []int{1, 2, 3, 10}, a.Heights())
	require.Equal(t, []int{1, 2, 3, 20}, b.Heights())
	require.Equal(t, []int{1, 2, 3}, base.Heights())
}

func TestRemoveFromStart(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	hs := randomHeights(r, 100)
	s := New(hs)

	_, changed := RemoveFromStart(s, 0)
	require.False(t, changed)
	_, changed = RemoveFromStart(s, -3)
	require.False(t, changed)

	empty, changed := RemoveFromStart(s, len(hs))
	require.True(t, changed)
	requireConsistent(t, empty, nil)

	empty, _ = RemoveFromStart(s, len(hs)+5)
	requireConsistent(t, empty, nil)

	for _, k := range []int{1, 31, 32, 33, 99} {
		next, changed := RemoveFromStart(s, k)
		require.True(t, changed)
		requireConsistent(t, next, hs[k:])
	}
	requireConsistent(t, s, hs)
}

func TestComputeAnchorDelta(t *testing.T) {
	old := New([]int{1, 1, 1, 1, 1, 1})
	anchor := 4
	oldPrefix := PrefixSum(old, anchor)

	next, _ := BatchUpdateHeights(old, []Update{
		{Index: 0, Height: 3},
		{Index: 2, Height: 2},
		{Index: 5, Height: 10}, // below the anchor, ignored
	})
	require.Equal(t, 3, ComputeAnchorDelta(next, oldPrefix, anchor))
	require.Equal(t, 0, ComputeAnchorDelta(old, oldPrefix, anchor))
}

func TestLocate(t *testing.T) {
	s := New([]int{2, 0, 3, 1})
	tests := []struct {
		offset     int
		wantIndex  int
		wantWithin int
	}{
		{offset: -1, wantIndex: 0, wantWithin: 0},
		{offset: 0, wantIndex: 0, wantWithin: 0},
		{offset: 1, wantIndex: 0, wantWithin: 1},
		{offset: 2, wantIndex: 2, wantWithin: 0},
		{offset: 4, wantIndex: 2, wantWithin: 2},
		{offset: 5, wantIndex: 3, wantWithin: 0},
		{offset: 6, wantIndex: 4, wantWithin: 0},
	}
	for _, tt := range tests {
		index, within := Locate(s, tt.offset)
		require.Equal(t, tt.wantIndex, index, "offset %d", tt.offset)
		require.Equal(t, tt.wantWithin, within, "offset %d", tt.offset)
	}
}

func TestLocateInvertsPrefixSum(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	hs := randomHeights(r, 300)
	s := New(hs)
	for offset := 0; offset < s.TotalHeight(); offset++ {
		index, within := Locate(s, offset)
		require.Less(t, within, Height(s, index))
		require.Equal(t, offset, PrefixSum(s, index)+within)
	}
}

func TestVisibleRange(t *testing.T) {
	s := New([]int{2, 2, 2, 2, 2})
	tests := []struct {
		name          string
		offset, rows  int
		start, finish int
	}{
		{name: "top", offset: 0, rows: 3, start: 0, finish: 2},
		{name: "aligned", offset: 2, rows: 4, start: 1, finish: 3},
		{name: "past end", offset: 8, rows: 10, start: 4, finish: 5},
		{name: "beyond content", offset: 20, rows: 3, start: 5, finish: 5},
		{name: "zero height viewport", offset: 0, rows: 0, start: 0, finish: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := VisibleRange(s, tt.offset, tt.rows)
			require.Equal(t, tt.start, start)
			require.Equal(t, tt.finish, end)
		})
	}
}
