package dataset

import (
	"errors"
	"fmt"
	"math"
)

// Frame 为按列存储的只读数值表，缺失值以 NaN 表示。
//
// 行按时间顺序排列，列之间相互独立。Frame 创建后不再修改，
// Column 返回的切片与 Frame 共享底层数组，调用方不得写入。
type Frame struct {
	index   []string
	columns []string
	data    [][]float64
	lookup  map[string]int
}

// New 根据行索引、列名与逐列数据创建 Frame。index 可为空。
func New(index []string, columns []string, data [][]float64) (*Frame, error) {
	if len(columns) != len(data) {
		return nil, fmt.Errorf("dataset: 列名数量 %d 与数据列数量 %d 不一致", len(columns), len(data))
	}

	rows := -1
	lookup := make(map[string]int, len(columns))
	for i, name := range columns {
		if name == "" {
			return nil, fmt.Errorf("dataset: 第 %d 列缺少列名", i+1)
		}
		if _, dup := lookup[name]; dup {
			return nil, fmt.Errorf("dataset: 列名 %q 重复", name)
		}
		lookup[name] = i

		if rows >= 0 && len(data[i]) != rows {
			return nil, fmt.Errorf("dataset: 列 %q 长度 %d 与其他列长度 %d 不一致", name, len(data[i]), rows)
		}
		rows = len(data[i])
	}
	if rows < 0 {
		rows = len(index)
	}
	if len(index) > 0 && len(index) != rows {
		return nil, fmt.Errorf("dataset: 行索引长度 %d 与数据行数 %d 不一致", len(index), rows)
	}

	copied := make([][]float64, len(data))
	for i, col := range data {
		copied[i] = append([]float64(nil), col...)
	}

	return &Frame{
		index:   append([]string(nil), index...),
		columns: append([]string(nil), columns...),
		data:    copied,
		lookup:  lookup,
	}, nil
}

// Columns 返回列名副本。
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Column 返回指定列，不存在时返回 nil。
func (f *Frame) Column(name string) []float64 {
	i, ok := f.lookup[name]
	if !ok {
		return nil
	}
	return f.data[i]
}

// Index 返回行索引副本。
func (f *Frame) Index() []string {
	return append([]string(nil), f.index...)
}

// Len 返回行数。
func (f *Frame) Len() int {
	if len(f.data) == 0 {
		return len(f.index)
	}
	return len(f.data[0])
}

// Width 返回列数。
func (f *Frame) Width() int {
	return len(f.columns)
}

// MissingCount 返回指定列的缺失值个数。
func (f *Frame) MissingCount(name string) int {
	count := 0
	for _, v := range f.Column(name) {
		if math.IsNaN(v) {
			count++
		}
	}
	return count
}

// ErrUnknownColumn 表示选择了不存在的列。
var ErrUnknownColumn = errors.New("dataset: 列不存在")

// Select 按给定顺序挑选列，返回共享数据的新 Frame。未指定列时返回自身。
func (f *Frame) Select(columns ...string) (*Frame, error) {
	if len(columns) == 0 {
		return f, nil
	}

	data := make([][]float64, len(columns))
	lookup := make(map[string]int, len(columns))
	for i, name := range columns {
		idx, ok := f.lookup[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if _, dup := lookup[name]; dup {
			return nil, fmt.Errorf("dataset: 列名 %q 重复", name)
		}
		lookup[name] = i
		data[i] = f.data[idx]
	}

	return &Frame{
		index:   f.index,
		columns: append([]string(nil), columns...),
		data:    data,
		lookup:  lookup,
	}, nil
}
