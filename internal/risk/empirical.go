package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// empiricalTail 为单列的经验分位数与尾部均值。
type empiricalTail struct {
	Quantile float64
	TailMean float64
}

// quantileLinear 按次序统计量线性插值计算 alpha 分位数，sorted 必须升序且非空。
// h = alpha*(n-1)，k = floor(h)，结果为 x[k] + (h-k)*(x[k+1]-x[k])，上标截断到 n-1。
func quantileLinear(sorted []float64, alpha float64) float64 {
	n := len(sorted)
	h := alpha * float64(n-1)
	k := int(math.Floor(h))
	if k < 0 {
		k = 0
	}
	if k > n-1 {
		k = n - 1
	}
	upper := k + 1
	if upper > n-1 {
		upper = n - 1
	}
	return sorted[k] + (h-float64(k))*(sorted[upper]-sorted[k])
}

// estimateEmpiricalTail 计算经验分位数及不高于该分位数的观测均值。
// 无有限观测值时两者均为 NaN。输入切片不会被重排。
func estimateEmpiricalTail(column []float64, alpha float64) empiricalTail {
	sorted := observations(column)
	if len(sorted) == 0 {
		return empiricalTail{Quantile: math.NaN(), TailMean: math.NaN()}
	}
	sort.Float64s(sorted)

	q := quantileLinear(sorted, alpha)

	// sorted 升序，尾部即为不超过 q 的前缀，阈值处的并列值全部计入。
	cut := sort.Search(len(sorted), func(i int) bool { return sorted[i] > q })
	if cut == 0 {
		cut = 1
	}
	return empiricalTail{
		Quantile: q,
		TailMean: stat.Mean(sorted[:cut], nil),
	}
}
