package report

import (
	"time"

	"riskmetrics/internal/risk"
)

// Entry 为某一度量、方法与置信水平组合下的逐列结果。
type Entry struct {
	Measure    risk.Measure `json:"measure"`
	Method     risk.Method  `json:"method"`
	Confidence float64      `json:"confidence"`
	Values     risk.Series  `json:"values"`
}

// Report 汇总单个数据集的风险评估结果。
type Report struct {
	ID          int64          `json:"id,omitempty"`
	Dataset     string         `json:"dataset"`
	DataType    risk.DataType  `json:"data_type"`
	Rows        int            `json:"rows"`
	Columns     []string       `json:"columns"`
	Moments     []risk.Moments `json:"moments"`
	Entries     []Entry        `json:"entries"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Summary 为报告列表的概要信息。
type Summary struct {
	ID          int64         `json:"id"`
	Dataset     string        `json:"dataset"`
	DataType    risk.DataType `json:"data_type"`
	Rows        int           `json:"rows"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Find 查找指定组合的结果。
func (r Report) Find(measure risk.Measure, method risk.Method, confidence float64) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Measure == measure && e.Method == method && e.Confidence == confidence {
			return e, true
		}
	}
	return Entry{}, false
}

// Summary 返回报告概要。
func (r Report) Summary() Summary {
	return Summary{
		ID:          r.ID,
		Dataset:     r.Dataset,
		DataType:    r.DataType,
		Rows:        r.Rows,
		GeneratedAt: r.GeneratedAt,
	}
}
