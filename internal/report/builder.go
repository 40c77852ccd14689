package report

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"riskmetrics/internal/risk"
)

// Table 为可统计行数的数据集。
type Table interface {
	risk.Table
	Len() int
}

// Builder 按置信水平与方法组成的网格批量计算 VaR 与 CVaR。
type Builder struct {
	levels  []float64
	methods []risk.Method
	logger  *zap.Logger
	now     func() time.Time
}

// NewBuilder 创建报告构建器，并预先校验所有参数组合。
func NewBuilder(levels []float64, methods []risk.Method, logger *zap.Logger) (*Builder, error) {
	if len(levels) == 0 {
		return nil, errors.New("report: 至少需要一个置信水平")
	}
	if len(methods) == 0 {
		return nil, errors.New("report: 至少需要一种计算方法")
	}
	seenLevels := make(map[float64]struct{}, len(levels))
	for _, c := range levels {
		if _, dup := seenLevels[c]; dup {
			return nil, fmt.Errorf("report: 置信水平 %v 重复", c)
		}
		seenLevels[c] = struct{}{}
	}
	seenMethods := make(map[risk.Method]struct{}, len(methods))
	for _, m := range methods {
		if _, dup := seenMethods[m]; dup {
			return nil, fmt.Errorf("report: 计算方法 %q 重复", string(m))
		}
		seenMethods[m] = struct{}{}
	}
	for _, c := range levels {
		for _, m := range methods {
			p := risk.Params{Confidence: c, Method: m, DataType: risk.DefaultDataType}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("report: %w", err)
			}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Builder{
		levels:  append([]float64(nil), levels...),
		methods: append([]risk.Method(nil), methods...),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (b *Builder) hasMethod(method risk.Method) bool {
	for _, m := range b.methods {
		if m == method {
			return true
		}
	}
	return false
}

// Build 对数据集逐一计算网格中的 VaR 与 CVaR。
func (b *Builder) Build(name string, table Table, dataType risk.DataType) (Report, error) {
	if table == nil {
		return Report{}, risk.ErrNilTable
	}

	est, err := risk.NewEstimator(table)
	if err != nil {
		return Report{}, err
	}

	moments := est.Moments()
	for _, m := range moments {
		switch {
		case m.Count == 0:
			b.logger.Warn("列无有效观测值，风险结果缺失",
				zap.String("dataset", name),
				zap.String("column", m.Column),
			)
		case m.Count == 1 && b.hasMethod(risk.MethodParametric):
			b.logger.Warn("列观测值不足，参数法结果缺失",
				zap.String("dataset", name),
				zap.String("column", m.Column),
			)
		}
	}

	entries := make([]Entry, 0, len(b.levels)*len(b.methods)*2)
	for _, c := range b.levels {
		for _, method := range b.methods {
			for _, measure := range []risk.Measure{risk.MeasureVaR, risk.MeasureCVaR} {
				values, err := est.Compute(measure, risk.Params{Confidence: c, Method: method, DataType: dataType})
				if err != nil {
					return Report{}, fmt.Errorf("report: 计算 %s 失败: %w", name, err)
				}
				entries = append(entries, Entry{
					Measure:    measure,
					Method:     method,
					Confidence: c,
					Values:     values,
				})
			}
		}
	}

	b.logger.Debug("风险报告计算完成",
		zap.String("dataset", name),
		zap.String("data_type", string(dataType)),
		zap.Int("rows", table.Len()),
		zap.Int("columns", len(moments)),
		zap.Int("entries", len(entries)),
	)

	return Report{
		Dataset:     name,
		DataType:    dataType,
		Rows:        table.Len(),
		Columns:     est.Columns(),
		Moments:     moments,
		Entries:     entries,
		GeneratedAt: b.now(),
	}, nil
}
