package history

import "fmt"

// EvictFunc 接收被淘汰的元素，按从旧到新排列。
type EvictFunc[T any] func(evicted []T)

// arena 是多个 Buffer 版本共享的底层存储。slots 只追加，从不改写已有槽位，
// 因此旧版本读取自己的 [start, end) 区间总是安全的。
type arena[T any] struct {
	slots []T
}

// Buffer 是容量受限的不可变 FIFO 序列。超出 maxSize 时从最旧一端淘汰，
// 并在返回新状态前调用 onEvict。所有变更方法都返回新的 Buffer，原值不变。
//
// 处于最新尾部的版本追加时直接复用共享存储；从旧版本分叉出的追加会复制一份。
// 零值不可用，使用 New 创建。
type Buffer[T any] struct {
	store      *arena[T]
	start, end int
	maxSize    int
	evictBatch int
	onEvict    EvictFunc[T]
}

// New 创建容量为 maxSize 的空缓冲区；maxSize 为负属于编程错误，直接 panic。
// onEvict 可以为 nil。
func New[T any](maxSize int, onEvict func(evicted []T)) Buffer[T] {
	if maxSize < 0 {
		panic(fmt.Sprintf("history: negative max size %d", maxSize))
	}
	return Buffer[T]{
		store:      &arena[T]{},
		maxSize:    maxSize,
		evictBatch: max(1, maxSize/10),
		onEvict:    onEvict,
	}
}

// WithEvictBatchSize 调整压缩存储时的批量阈值，不影响淘汰数量。
func (b Buffer[T]) WithEvictBatchSize(n int) Buffer[T] {
	b.evictBatch = max(1, n)
	return b
}

// EvictBatchSize 返回当前的批量阈值。
func (b Buffer[T]) EvictBatchSize() int { return b.evictBatch }

// MaxSize 返回容量上限。
func (b Buffer[T]) MaxSize() int { return b.maxSize }

// Len 返回当前元素数量。
func (b Buffer[T]) Len() int { return b.end - b.start }

// Push 追加单个元素，溢出时淘汰最旧元素。
func (b Buffer[T]) Push(item T) Buffer[T] {
	return b.PushMany([]T{item})
}

// PushMany 批量追加。溢出的元素在一次 onEvict 调用中按从旧到新交付。
func (b Buffer[T]) PushMany(items []T) Buffer[T] {
	if len(items) == 0 {
		return b
	}
	next := b.appended(items)
	return next.evictOverflow(next.maxSize)
}

// Get 返回第 i 个元素（0 为最旧）。
func (b Buffer[T]) Get(i int) (T, bool) {
	if i < 0 || i >= b.Len() {
		var zero T
		return zero, false
	}
	return b.store.slots[b.start+i], true
}

// First 返回最旧的元素。
func (b Buffer[T]) First() (T, bool) { return b.Get(0) }

// Last 返回最新的元素。
func (b Buffer[T]) Last() (T, bool) { return b.Get(b.Len() - 1) }

// ToArray 返回元素的独立拷贝，修改它不会影响缓冲区。
func (b Buffer[T]) ToArray() []T {
	out := make([]T, b.Len())
	copy(out, b.items())
	return out
}

// Slice 返回 [from, to) 区间的独立拷贝，区间会被裁剪到有效范围。
func (b Buffer[T]) Slice(from, to int) []T {
	from = max(from, 0)
	to = min(to, b.Len())
	if from >= to {
		return nil
	}
	return append([]T(nil), b.items()[from:to]...)
}

// ForEach 按从旧到新遍历。
func (b Buffer[T]) ForEach(fn func(item T, index int)) {
	for i, item := range b.items() {
		fn(item, i)
	}
}

// Find 返回第一个满足条件的元素。
func (b Buffer[T]) Find(pred func(item T, index int) bool) (T, bool) {
	if i := b.FindIndex(pred); i >= 0 {
		return b.store.slots[b.start+i], true
	}
	var zero T
	return zero, false
}

// FindIndex 返回第一个满足条件的元素下标，没有则返回 -1。
func (b Buffer[T]) FindIndex(pred func(item T, index int) bool) int {
	for i, item := range b.items() {
		if pred(item, i) {
			return i
		}
	}
	return -1
}

// Filter 返回只保留匹配元素的新缓冲区，容量与 onEvict 不变。
func (b Buffer[T]) Filter(pred func(item T, index int) bool) Buffer[T] {
	kept := make([]T, 0, b.Len())
	for i, item := range b.items() {
		if pred(item, i) {
			kept = append(kept, item)
		}
	}
	out := b
	out.store = &arena[T]{slots: kept}
	out.start, out.end = 0, len(kept)
	return out
}

// Clear 返回容量与 onEvict 相同的空缓冲区，不触发 onEvict。
func (b Buffer[T]) Clear() Buffer[T] {
	out := b
	out.store = &arena[T]{}
	out.start, out.end = 0, 0
	return out
}

// Resize 修改容量。扩容从不淘汰；缩容时淘汰最旧的多余元素并调用一次 onEvict。
func (b Buffer[T]) Resize(maxSize int) Buffer[T] {
	if maxSize < 0 {
		panic(fmt.Sprintf("history: negative max size %d", maxSize))
	}
	out := b
	out.maxSize = maxSize
	return out.evictOverflow(maxSize)
}

// Map 把缓冲区投影为普通切片。
func Map[T, U any](b Buffer[T], mapper func(item T, index int) U) []U {
	out := make([]U, 0, b.Len())
	for i, item := range b.items() {
		out = append(out, mapper(item, i))
	}
	return out
}

func (b Buffer[T]) items() []T {
	if b.store == nil {
		return nil
	}
	return b.store.slots[b.start:b.end]
}

// appended 返回追加 items 后的新版本。只有位于共享存储尾部的版本可以原地追加。
func (b Buffer[T]) appended(items []T) Buffer[T] {
	out := b
	if b.store != nil && b.end == len(b.store.slots) {
		b.store.slots = append(b.store.slots, items...)
		out.end = len(b.store.slots)
		return out.compacted()
	}
	slots := make([]T, 0, b.Len()+len(items))
	slots = append(slots, b.items()...)
	slots = append(slots, items...)
	out.store = &arena[T]{slots: slots}
	out.start, out.end = 0, len(slots)
	return out
}

func (b Buffer[T]) evictOverflow(limit int) Buffer[T] {
	overflow := b.Len() - limit
	if overflow <= 0 {
		return b
	}
	if b.onEvict != nil {
		evicted := make([]T, overflow)
		copy(evicted, b.items()[:overflow])
		b.onEvict(evicted)
	}
	out := b
	out.start += overflow
	return out.compacted()
}

// compacted 在已淘汰的前缀足够大时把存活区间搬到新存储，释放旧槽位。
func (b Buffer[T]) compacted() Buffer[T] {
	if b.start < b.evictBatch || b.start < b.Len() {
		return b
	}
	slots := make([]T, b.Len(), max(b.maxSize, b.Len()))
	copy(slots, b.items())
	out := b
	out.store = &arena[T]{slots: slots}
	out.start, out.end = 0, len(slots)
	return out
}
