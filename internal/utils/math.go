package utils

// Max 返回两个 int 中较大的一个
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Min 返回两个 int 中较小的一个
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ClampF64 将 v 限制在 [lo, hi] 区间内
func ClampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampU64 将 v 限制在 [lo, hi] 区间内
func ClampU64(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
