package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// observations 返回列中的有限观测值，缺失值被剔除。
func observations(column []float64) []float64 {
	out := make([]float64, 0, len(column))
	for _, v := range column {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}

// estimateMoments 计算样本均值与无偏标准差（除数 n-1）。
// 少于两个观测值时标准差为 NaN，无观测值时均值同样为 NaN。
func estimateMoments(name string, column []float64) Moments {
	obs := observations(column)
	m := Moments{
		Column: name,
		Count:  len(obs),
		Mean:   math.NaN(),
		StdDev: math.NaN(),
	}
	switch len(obs) {
	case 0:
	case 1:
		m.Mean = obs[0]
	default:
		m.Mean, m.StdDev = stat.MeanStdDev(obs, nil)
	}
	return m
}
