package utils

import "sort"

// PercentileU64 计算样本的第 p 百分位（p ∈ [0,100]，最近邻取整法）。
// 不修改输入切片；样本为空时返回 0。
func PercentileU64(samples []uint64, p float64) uint64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]uint64, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	// 最近邻法：rank = ceil(p/100 * n)，转为 0 基下标
	rank := int(p/100*float64(n) + 0.999999)
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}
