package history

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

type evictRecorder[T any] struct {
	batches [][]T
}

func (r *evictRecorder[T]) record(evicted []T) {
	r.batches = append(r.batches, evicted)
}

func (r *evictRecorder[T]) total() int {
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestNewDefaults(t *testing.T) {
	b := New[int](500, nil)
	require.Equal(t, 500, b.MaxSize())
	require.Equal(t, 50, b.EvictBatchSize())
	require.Equal(t, 0, b.Len())
	require.Equal(t, 1, New[int](5, nil).EvictBatchSize())
	require.Equal(t, 7, New[int](5, nil).WithEvictBatchSize(7).EvictBatchSize())
}

func TestNewNegativeSizePanics(t *testing.T) {
	require.Panics(t, func() { New[int](-1, nil) })
	require.Panics(t, func() { New[int](3, nil).Resize(-2) })
}

func TestPushRetainsNewest(t *testing.T) {
	tests := []struct {
		pushes, capacity int
	}{
		{pushes: 0, capacity: 3},
		{pushes: 2, capacity: 3},
		{pushes: 3, capacity: 3},
		{pushes: 10, capacity: 3},
		{pushes: 1000, capacity: 37},
		{pushes: 4, capacity: 0},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.pushes)+"/"+strconv.Itoa(tt.capacity), func(t *testing.T) {
			rec := &evictRecorder[int]{}
			b := New(tt.capacity, rec.record)
			for i := 0; i < tt.pushes; i++ {
				b = b.Push(i)
			}

			want := []int{}
			for i := max(0, tt.pushes-tt.capacity); i < tt.pushes; i++ {
				want = append(want, i)
			}
			require.Equal(t, min(tt.pushes, tt.capacity), b.Len())
			require.Equal(t, want, b.ToArray())
			require.Equal(t, max(0, tt.pushes-tt.capacity), rec.total())
			for _, batch := range rec.batches {
				require.Len(t, batch, 1)
			}
		})
	}
}

func TestPushManyEvictsInSingleCallback(t *testing.T) {
	rec := &evictRecorder[string]{}
	b := New(3, rec.record).PushMany([]string{"a", "b"})
	require.Empty(t, rec.batches)

	b = b.PushMany([]string{"c", "d", "e", "f"})
	require.Equal(t, []string{"d", "e", "f"}, b.ToArray())
	require.Equal(t, [][]string{{"a", "b", "c"}}, rec.batches)

	same := b.PushMany(nil)
	require.Equal(t, b.ToArray(), same.ToArray())
	require.Len(t, rec.batches, 1)
}

func TestImmutableVersions(t *testing.T) {
	base := New[int](4, nil).PushMany([]int{1, 2})
	a := base.Push(3)
	b := base.Push(30)
	c := a.Push(4).Push(5)

	require.Equal(t, []int{1, 2}, base.ToArray())
	require.Equal(t, []int{1, 2, 3}, a.ToArray())
	require.Equal(t, []int{1, 2, 30}, b.ToArray())
	require.Equal(t, []int{2, 3, 4, 5}, c.ToArray())
}

func TestToArrayIsIndependent(t *testing.T) {
	b := New[int](3, nil).PushMany([]int{1, 2, 3})
	arr := b.ToArray()
	arr[0] = 99
	first, ok := b.First()
	require.True(t, ok)
	require.Equal(t, 1, first)
}

func TestReadProjections(t *testing.T) {
	b := New[int](5, nil).PushMany([]int{1, 2, 3, 4, 5, 6})

	v, ok := b.Get(0)
	require.True(t, ok)
	require.Equal(t, 2, v)
	_, ok = b.Get(5)
	require.False(t, ok)
	_, ok = b.Get(-1)
	require.False(t, ok)

	last, ok := b.Last()
	require.True(t, ok)
	require.Equal(t, 6, last)

	found, ok := b.Find(func(item, _ int) bool { return item%2 == 1 })
	require.True(t, ok)
	require.Equal(t, 3, found)
	require.Equal(t, -1, b.FindIndex(func(item, _ int) bool { return item > 10 }))

	var seen []int
	b.ForEach(func(item, index int) { seen = append(seen, item*10+index) })
	require.Equal(t, []int{20, 31, 42, 53, 64}, seen)

	require.Equal(t, []string{"2", "3", "4", "5", "6"}, Map(b, func(item, _ int) string { return strconv.Itoa(item) }))
	require.Equal(t, []int{3, 4}, b.Slice(1, 3))
	require.Nil(t, b.Slice(4, 2))

	_, ok = New[int](2, nil).First()
	require.False(t, ok)
}

func TestFilterKeepsCapacityAndCallback(t *testing.T) {
	rec := &evictRecorder[int]{}
	b := New(4, rec.record).PushMany([]int{1, 2, 3, 4})
	odd := b.Filter(func(item, _ int) bool { return item%2 == 1 })
	require.Equal(t, []int{1, 3}, odd.ToArray())
	require.Equal(t, 4, odd.MaxSize())

	odd = odd.PushMany([]int{5, 7, 9})
	require.Equal(t, []int{3, 5, 7, 9}, odd.ToArray())
	require.Equal(t, [][]int{{1}}, rec.batches)
	require.Equal(t, []int{1, 2, 3, 4}, b.ToArray())
}

func TestClearDoesNotEvict(t *testing.T) {
	rec := &evictRecorder[int]{}
	b := New(3, rec.record).PushMany([]int{1, 2, 3})
	cleared := b.Clear()
	require.Equal(t, 0, cleared.Len())
	require.Equal(t, 3, cleared.MaxSize())
	require.Empty(t, rec.batches)

	cleared = cleared.PushMany([]int{4, 5, 6, 7})
	require.Equal(t, [][]int{{4}}, rec.batches)
}

func TestResize(t *testing.T) {
	rec := &evictRecorder[int]{}
	b := New(5, rec.record).PushMany([]int{1, 2, 3, 4, 5})

	grown := b.Resize(10)
	require.Equal(t, []int{1, 2, 3, 4, 5}, grown.ToArray())
	require.Empty(t, rec.batches)

	shrunk := b.Resize(2)
	require.Equal(t, []int{4, 5}, shrunk.ToArray())
	require.Equal(t, 2, shrunk.MaxSize())
	require.Equal(t, [][]int{{1, 2, 3}}, rec.batches)
}

func TestLongRunStaysBounded(t *testing.T) {
	b := New[int](50, nil)
	for i := 0; i < 10000; i++ {
		b = b.Push(i)
	}
	require.Equal(t, 50, b.Len())
	require.LessOrEqual(t, len(b.store.slots), 2*50+b.EvictBatchSize())
	last, _ := b.Last()
	require.Equal(t, 9999, last)
}
