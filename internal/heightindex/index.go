// Package heightindex 维护可变高度行序列的分块前缀和索引。
//
// 行按追加顺序编号，每 BlockSize 行组成一个块并缓存块内高度之和，
// 前缀和查询只需累加目标块之前的块和，再扫描块内不足 BlockSize 的行。
//
// State 是不可变值：所有变更函数返回新的 State 与 changed 标记，
// changed == false 时返回的就是原值，调用方可据此跳过重绘。
// 块在被多个版本共享后不会再被原地修改，更新只复制受影响的块。
package heightindex

// BlockSize 是每个聚合块包含的行数。
const BlockSize = 32

// State 是高度索引的不可变快照。零值即为空索引。
type State struct {
	blocks [][]int
	sums   []int
	length int
	total  int
}

// Update 描述一次点更新。
type Update struct {
	Index  int
	Height int
}

// New 一次遍历构建高度与块和。
func New(initial []int) State {
	if len(initial) == 0 {
		return State{}
	}
	n := len(initial)
	nb := blockCount(n)
	s := State{
		blocks: make([][]int, nb),
		sums:   make([]int, nb),
		length: n,
	}
	for b := 0; b < nb; b++ {
		lo := b * BlockSize
		hi := min(lo+BlockSize, n)
		block := make([]int, hi-lo, BlockSize)
		sum := 0
		for i := lo; i < hi; i++ {
			h := clampHeight(initial[i])
			block[i-lo] = h
			sum += h
		}
		s.blocks[b] = block
		s.sums[b] = sum
		s.total += sum
	}
	return s
}

// Len 返回行数。
func (s State) Len() int { return s.length }

// TotalHeight 返回全部行高之和。
func (s State) TotalHeight() int { return s.total }

// Heights 返回行高的独立拷贝。
func (s State) Heights() []int {
	out := make([]int, 0, s.length)
	for _, block := range s.blocks {
		out = append(out, block...)
	}
	return out
}

// BlockSums 返回块和的独立拷贝。
func (s State) BlockSums() []int {
	return append([]int(nil), s.sums...)
}

// Height 返回 index 行的高度，越界返回 0。
func Height(s State, index int) int {
	if index < 0 || index >= s.length {
		return 0
	}
	return s.blocks[index/BlockSize][index%BlockSize]
}

// UpdateHeight 替换单行高度，按差值调整所在块与总高度。
// index 越界或高度未变化时原样返回。
func UpdateHeight(s State, index, height int) (State, bool) {
	if index < 0 || index >= s.length {
		return s, false
	}
	height = clampHeight(height)
	b, off := index/BlockSize, index%BlockSize
	delta := height - s.blocks[b][off]
	if delta == 0 {
		return s, false
	}

	blocks := cloneOuter(s.blocks)
	block := cloneBlock(s.blocks[b])
	block[off] = height
	blocks[b] = block

	sums := append([]int(nil), s.sums...)
	sums[b] += delta
	return State{blocks: blocks, sums: sums, length: s.length, total: s.total + delta}, true
}

// BatchUpdateHeights 批量应用点更新：忽略越界下标，同一下标以输入中最后一次为准，
// 按块累计差值后一次性写入。没有任何行高真正变化时原样返回。
func BatchUpdateHeights(s State, updates []Update) (State, bool) {
	if len(updates) == 0 || s.length == 0 {
		return s, false
	}
	latest := make(map[int]int, len(updates))
	for _, u := range updates {
		if u.Index < 0 || u.Index >= s.length {
			continue
		}
		latest[u.Index] = clampHeight(u.Height)
	}

	var (
		blocks  [][]int
		sums    []int
		touched map[int]bool
		total   = s.total
	)
	for index, height := range latest {
		b, off := index/BlockSize, index%BlockSize
		delta := height - s.blocks[b][off]
		if delta == 0 {
			continue
		}
		if blocks == nil {
			blocks = cloneOuter(s.blocks)
			sums = append([]int(nil), s.sums...)
			touched = make(map[int]bool)
		}
		if !touched[b] {
			blocks[b] = cloneBlock(s.blocks[b])
			touched[b] = true
		}
		blocks[b][off] = height
		sums[b] += delta
		total += delta
	}
	if blocks == nil {
		return s, false
	}
	return State{blocks: blocks, sums: sums, length: s.length, total: total}, true
}

// AppendHeights 追加行，先填满最后一个未满块，跨越边界时新建块。
// 只重算受影响块的和。
func AppendHeights(s State, heights []int) (State, bool) {
	if len(heights) == 0 {
		return s, false
	}
	blocks := cloneOuter(s.blocks)
	sums := append([]int(nil), s.sums...)
	total := s.total

	rest := heights
	if nb := len(blocks); nb > 0 && len(blocks[nb-1]) < BlockSize {
		last := cloneBlock(blocks[nb-1])
		room := BlockSize - len(last)
		take := min(room, len(rest))
		for _, h := range rest[:take] {
			h = clampHeight(h)
			last = append(last, h)
			sums[nb-1] += h
			total += h
		}
		blocks[nb-1] = last
		rest = rest[take:]
	}
	for len(rest) > 0 {
		take := min(BlockSize, len(rest))
		block := make([]int, 0, BlockSize)
		sum := 0
		for _, h := range rest[:take] {
			h = clampHeight(h)
			block = append(block, h)
			sum += h
		}
		blocks = append(blocks, block)
		sums = append(sums, sum)
		total += sum
		rest = rest[take:]
	}
	return State{blocks: blocks, sums: sums, length: s.length + len(heights), total: total}, true
}

// RemoveFromStart 删除最前面的 count 行。每个块的成员都会平移，因此块和整体重建。
func RemoveFromStart(s State, count int) (State, bool) {
	if count <= 0 || s.length == 0 {
		return s, false
	}
	if count >= s.length {
		return State{}, true
	}
	return New(s.Heights()[count:]), true
}

// PrefixSum 返回前 index 行的高度之和。
// index <= 0 返回 0；index >= Len 返回总高度。
func PrefixSum(s State, index int) int {
	if index <= 0 {
		return 0
	}
	if index >= s.length {
		return s.total
	}
	b, off := index/BlockSize, index%BlockSize
	sum := 0
	for _, v := range s.sums[:b] {
		sum += v
	}
	for _, h := range s.blocks[b][:off] {
		sum += h
	}
	return sum
}

// ComputeAnchorDelta 返回锚点行之前的高度在两个状态间的净变化量。
// 两个状态必须描述同一逻辑序列，anchor 在两者中指向同一行。
func ComputeAnchorDelta(next State, oldPrefixAtAnchor, anchor int) int {
	return PrefixSum(next, anchor) - oldPrefixAtAnchor
}

// Locate 返回包含纵向偏移 offset 的行及其在行内的偏移。
// offset < 0 视为 0；offset 超出总高度时返回 (Len, 0)。高度为 0 的行不会被命中。
func Locate(s State, offset int) (index, within int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= s.total {
		return s.length, 0
	}
	b := 0
	for ; b < len(s.sums); b++ {
		if offset < s.sums[b] {
			break
		}
		offset -= s.sums[b]
	}
	for i, h := range s.blocks[b] {
		if offset < h {
			return b*BlockSize + i, offset
		}
		offset -= h
	}
	// sums 与 blocks 一致时不可达
	return s.length, 0
}

// VisibleRange 返回与 [offset, offset+height) 相交的行区间 [start, end)。
func VisibleRange(s State, offset, height int) (start, end int) {
	if height <= 0 || s.length == 0 {
		return 0, 0
	}
	if offset < 0 {
		offset = 0
	}
	start, _ = Locate(s, offset)
	if start >= s.length {
		return s.length, s.length
	}
	last, _ := Locate(s, offset+height-1)
	if last >= s.length {
		return start, s.length
	}
	return start, last + 1
}

func blockCount(n int) int {
	return (n + BlockSize - 1) / BlockSize
}

func cloneOuter(blocks [][]int) [][]int {
	out := make([][]int, len(blocks), len(blocks)+1)
	copy(out, blocks)
	return out
}

func cloneBlock(block []int) []int {
	out := make([]int, len(block), BlockSize)
	copy(out, block)
	return out
}

func clampHeight(h int) int {
	if h < 0 {
		return 0
	}
	return h
}
