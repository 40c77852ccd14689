package risk

import (
	"fmt"
	"math"
	"strings"
)

// Method 描述风险估计所采用的统计模型。
type Method string

const (
	MethodParametric Method = "parametric"
	MethodHistorical Method = "historical"
)

// DataType 描述列数据的符号约定。
type DataType string

const (
	DataTypeReturns DataType = "returns"
	DataTypePnL     DataType = "pnl"
)

// Measure 区分 VaR 与 CVaR。
type Measure string

const (
	MeasureVaR  Measure = "var"
	MeasureCVaR Measure = "cvar"
)

const (
	DefaultConfidence = 0.99
	DefaultMethod     = MethodParametric
	DefaultDataType   = DataTypeReturns
)

// Table 为估计器提供按列访问的二维数据。
//
// Columns 返回有序且唯一的列名；Column 返回的切片由调用方持有，估计器只读不写，
// 缺失值以 NaN 表示。
type Table interface {
	Columns() []string
	Column(name string) []float64
}

// Params 汇总一次风险计算的参数。
type Params struct {
	Confidence float64  // 置信水平 c，尾部概率为 1-c
	Method     Method   // parametric 或 historical
	DataType   DataType // returns 或 pnl
}

// DefaultParams 返回调用方默认使用的参数组合。
func DefaultParams() Params {
	return Params{
		Confidence: DefaultConfidence,
		Method:     DefaultMethod,
		DataType:   DefaultDataType,
	}
}

// Alpha 返回尾部概率 1-c。
func (p Params) Alpha() float64 {
	return 1 - p.Confidence
}

// Validate 校验参数是否位于合法集合内。
func (p Params) Validate() error {
	if !(p.Confidence > 0 && p.Confidence < 1) {
		return fmt.Errorf("risk: 置信水平 %v 必须位于 (0,1): %w", p.Confidence, ErrInvalidParameter)
	}
	if !p.Method.Valid() {
		return fmt.Errorf("risk: 未知的计算方法 %q，仅支持 parametric 或 historical: %w", string(p.Method), ErrInvalidParameter)
	}
	if !p.DataType.Valid() {
		return fmt.Errorf("risk: 未知的数据类型 %q，仅支持 returns 或 pnl: %w", string(p.DataType), ErrInvalidParameter)
	}
	return nil
}

// Valid 判断方法是否受支持。
func (m Method) Valid() bool {
	return m == MethodParametric || m == MethodHistorical
}

// Valid 判断数据类型是否受支持。
func (d DataType) Valid() bool {
	return d == DataTypeReturns || d == DataTypePnL
}

// Valid 判断风险度量是否受支持。
func (m Measure) Valid() bool {
	return m == MeasureVaR || m == MeasureCVaR
}

// ParseMethod 解析方法名称，忽略大小写与首尾空白。
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("risk: 未知的计算方法 %q: %w", s, ErrInvalidParameter)
	}
	return m, nil
}

// ParseDataType 解析数据类型名称。
func ParseDataType(s string) (DataType, error) {
	d := DataType(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("risk: 未知的数据类型 %q: %w", s, ErrInvalidParameter)
	}
	return d, nil
}

// ParseMeasure 解析风险度量名称。
func ParseMeasure(s string) (Measure, error) {
	m := Measure(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("risk: 未知的风险度量 %q: %w", s, ErrInvalidParameter)
	}
	return m, nil
}

// Moments 记录单列的样本统计量。
// 非有限的统计量在 JSON 中编码为 null。
type Moments struct {
	Column string
	Count  int
	Mean   float64
	StdDev float64
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
