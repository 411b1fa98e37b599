package tree

import (
	"fmt"
	"math/bits"
)

// SegmentTree 是一个为加权随机抽样设计的线段树。
// 叶子节点存放每个候选项的权重，内部节点存放区间和，
// 因此可以在O(log n)内完成单点更新和按前缀和定位。
type SegmentTree struct {
	nodes        []float64 // 节点数组，大小为 2 * alignedSize
	originalSize int       // 调用方请求的叶子数量 (N)
	alignedSize  int       // 向上对齐到2的幂次后的叶子数量
}

// NewSegmentTree 创建一个指定叶子数量的空树。
func NewSegmentTree(size int) (*SegmentTree, error) {
	if size <= 0 {
		return nil, fmt.Errorf("线段树的大小必须为正数")
	}
	alignedSize := 1 << bits.Len(uint(size))
	return &SegmentTree{
		nodes:        make([]float64, 2*alignedSize),
		originalSize: size,
		alignedSize:  alignedSize,
	}, nil
}

// Rebuild 用给定的权重数组整体重建树，数组长度必须与叶子数量一致。
func (st *SegmentTree) Rebuild(weights []float64) error {
	if len(weights) != st.originalSize {
		return fmt.Errorf("权重数组大小 (%d) 与树的叶子数量 (%d) 不匹配", len(weights), st.originalSize)
	}

	// 1. 填充叶子层，多余的对齐叶子清零
	copy(st.nodes[st.alignedSize:st.alignedSize+st.originalSize], weights)
	for i := st.originalSize; i < st.alignedSize; i++ {
		st.nodes[st.alignedSize+i] = 0
	}

	// 2. 自底向上累加出所有内部节点
	for i := st.alignedSize - 1; i > 0; i-- {
		st.nodes[i] = st.nodes[2*i] + st.nodes[2*i+1]
	}
	return nil
}

// Update 更新指定叶子的权重，并同步维护它的所有祖先节点。
func (st *SegmentTree) Update(index int, value float64) error {
	if index < 0 || index >= st.originalSize {
		return fmt.Errorf("索引 %d 超出范围 [0, %d)", index, st.originalSize)
	}

	pos := st.alignedSize + index
	st.nodes[pos] = value
	for pos > 1 {
		pos /= 2
		st.nodes[pos] = st.nodes[2*pos] + st.nodes[2*pos+1]
	}
	return nil
}

// Query 返回指定叶子当前的权重。
func (st *SegmentTree) Query(index int) (float64, error) {
	if index < 0 || index >= st.originalSize {
		return 0, fmt.Errorf("索引 %d 超出范围 [0, %d)", index, st.originalSize)
	}
	return st.nodes[st.alignedSize+index], nil
}

// Find 返回给定前缀和落入的叶子索引。
// 配合 [0, TotalSum) 上的均匀随机数即可完成一次加权抽样。
// 零权重的叶子（包括已被Take取走的）永远不会被命中：
// 下降时对左子树和做严格小于比较，值恰好落在区间边界
// 或浮点误差把值推出边界时，选择仍有权重的那棵子树。
func (st *SegmentTree) Find(value float64) (int, error) {
	totalSum := st.nodes[1]
	if totalSum <= 0 {
		return -1, fmt.Errorf("树中已无剩余权重")
	}
	if value < 0 || value > totalSum {
		return -1, fmt.Errorf("查找值 %f 超出总权重范围 [0, %f]", value, totalSum)
	}

	pos := 1
	for pos < st.alignedSize {
		leftChild := 2 * pos
		rightChild := leftChild + 1
		switch {
		case value < st.nodes[leftChild]:
			pos = leftChild
		case st.nodes[rightChild] > 0:
			value -= st.nodes[leftChild]
			pos = rightChild
		default:
			// 右子树为空，值被边界或浮点误差推了过来，落回左子树
			pos = leftChild
		}
	}
	return pos - st.alignedSize, nil
}

// Take 将指定叶子的权重清零并返回清零前的值。
// 它是“无放回抽样”的核心：Find选中一个叶子后调用Take，
// 该叶子在后续抽样中就不会再被选中。
func (st *SegmentTree) Take(index int) (float64, error) {
	weight, err := st.Query(index)
	if err != nil {
		return 0, err
	}
	if err := st.Update(index, 0); err != nil {
		return 0, err
	}
	return weight, nil
}

// TotalSum 返回所有叶子权重的总和。
func (st *SegmentTree) TotalSum() float64 {
	return st.nodes[1]
}
