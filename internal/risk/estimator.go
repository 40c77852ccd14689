package risk

import (
	"fmt"
	"math"
)

// Estimator 基于只读数据集按列计算 VaR 与 CVaR。
//
// Estimator 仅借用数据集，不复制也不修改；除该引用外不保存任何状态，
// 在数据集不被外部修改的前提下可被多个 goroutine 同时调用。
type Estimator struct {
	table Table
}

// NewEstimator 创建估计器。
func NewEstimator(table Table) (*Estimator, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	return &Estimator{table: table}, nil
}

// Columns 返回数据集的列名。
func (e *Estimator) Columns() []string {
	return e.table.Columns()
}

// VaR 计算给定置信水平下每列的风险价值。
func (e *Estimator) VaR(confidence float64, method Method, dataType DataType) (Series, error) {
	return e.Compute(MeasureVaR, Params{Confidence: confidence, Method: method, DataType: dataType})
}

// CVaR 计算给定置信水平下每列的条件风险价值（期望亏损）。
func (e *Estimator) CVaR(confidence float64, method Method, dataType DataType) (Series, error) {
	return e.Compute(MeasureCVaR, Params{Confidence: confidence, Method: method, DataType: dataType})
}

// Compute 校验参数后按度量与方法分派，返回与输入列一一对应的结果。
// 参数非法时不返回部分结果；单列数据不足时该列记为 NaN，其余列照常计算。
func (e *Estimator) Compute(measure Measure, p Params) (Series, error) {
	if !measure.Valid() {
		return Series{}, fmt.Errorf("risk: 未知的风险度量 %q: %w", string(measure), ErrInvalidParameter)
	}
	if err := p.Validate(); err != nil {
		return Series{}, err
	}

	columns := e.table.Columns()
	values := make([]float64, len(columns))

	switch p.Method {
	case MethodParametric:
		tail, err := newGaussianTail(p.Alpha())
		if err != nil {
			return Series{}, err
		}
		for i, name := range columns {
			m := estimateMoments(name, e.table.Column(name))
			values[i] = parametric(measure, p.DataType, m, tail)
		}
	case MethodHistorical:
		alpha := p.Alpha()
		for i, name := range columns {
			t := estimateEmpiricalTail(e.table.Column(name), alpha)
			values[i] = historical(measure, t)
		}
	}

	return NewSeries(columns, values)
}

// Moments 返回每列的样本统计量。
func (e *Estimator) Moments() []Moments {
	columns := e.table.Columns()
	out := make([]Moments, len(columns))
	for i, name := range columns {
		out[i] = estimateMoments(name, e.table.Column(name))
	}
	return out
}

// parametric 将正态模型下的位置-尺度结果转换为对外报告的数值。
// returns 约定报告正的亏损幅度，pnl 约定报告带符号的阈值。
// CVaR 在 returns 约定下为 -(μ + σ·φ(z)/α)。
func parametric(measure Measure, dataType DataType, m Moments, tail gaussianTail) float64 {
	if m.Count < 2 || math.IsNaN(m.StdDev) {
		return math.NaN()
	}

	var level float64
	switch measure {
	case MeasureVaR:
		level = m.Mean + tail.Z*m.StdDev
	case MeasureCVaR:
		level = m.Mean + m.StdDev*tail.ESFactor
	}

	if dataType == DataTypeReturns {
		return -level
	}
	return level
}

// historical 对经验分位数与尾部均值取负号，不区分数据类型。
func historical(measure Measure, t empiricalTail) float64 {
	switch measure {
	case MeasureCVaR:
		return -t.TailMean
	default:
		return -t.Quantile
	}
}
