package risk

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// gaussianTail 保存标准正态分布在尾部概率 alpha 处的关键量。
type gaussianTail struct {
	Alpha    float64
	Z        float64 // Φ⁻¹(alpha)
	Density  float64 // φ(z)
	ESFactor float64 // φ(z)/alpha
}

func newGaussianTail(alpha float64) (gaussianTail, error) {
	if !(alpha > 0 && alpha < 1) {
		return gaussianTail{}, fmt.Errorf("risk: 尾部概率 %v 超出 (0,1): %w", alpha, ErrInvalidParameter)
	}
	z := distuv.UnitNormal.Quantile(alpha)
	density := distuv.UnitNormal.Prob(z)
	return gaussianTail{
		Alpha:    alpha,
		Z:        z,
		Density:  density,
		ESFactor: density / alpha,
	}, nil
}

// NormalQuantile 返回标准正态分布的左尾分位数 Φ⁻¹(alpha)。
func NormalQuantile(alpha float64) (float64, error) {
	tail, err := newGaussianTail(alpha)
	if err != nil {
		return 0, err
	}
	return tail.Z, nil
}

// ExpectedShortfallFactor 返回高斯期望亏损乘数 φ(Φ⁻¹(alpha))/alpha，恒为正。
func ExpectedShortfallFactor(alpha float64) (float64, error) {
	tail, err := newGaussianTail(alpha)
	if err != nil {
		return 0, err
	}
	return tail.ESFactor, nil
}
