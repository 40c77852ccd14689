package risk

import (
	"encoding/json"
	"fmt"
	"math"
)

// Series 按输入列顺序保存逐列风险值，缺失值以 NaN 表示。
type Series struct {
	names  []string
	values []float64
	index  map[string]int
}

// NewSeries 由等长的列名与数值构建 Series。
func NewSeries(names []string, values []float64) (Series, error) {
	if len(names) != len(values) {
		return Series{}, fmt.Errorf("risk: 列名数量 %d 与数值数量 %d 不一致", len(names), len(values))
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := index[name]; dup {
			return Series{}, fmt.Errorf("risk: 列名 %q 重复", name)
		}
		index[name] = i
	}
	return Series{
		names:  append([]string(nil), names...),
		values: append([]float64(nil), values...),
		index:  index,
	}, nil
}

// Len 返回条目数量。
func (s Series) Len() int {
	return len(s.names)
}

// Names 返回列名副本。
func (s Series) Names() []string {
	return append([]string(nil), s.names...)
}

// Values 返回数值副本。
func (s Series) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// At 返回第 i 个条目。
func (s Series) At(i int) (string, float64) {
	return s.names[i], s.values[i]
}

// Value 按列名查找数值。
func (s Series) Value(name string) (float64, bool) {
	i, ok := s.index[name]
	if !ok {
		return math.NaN(), false
	}
	return s.values[i], true
}

// IsMissing 判断某列结果是否缺失；不存在的列同样视为缺失。
func (s Series) IsMissing(name string) bool {
	v, ok := s.Value(name)
	return !ok || math.IsNaN(v)
}

// MissingColumns 返回结果缺失的列名。
func (s Series) MissingColumns() []string {
	var missing []string
	for i, v := range s.values {
		if math.IsNaN(v) {
			missing = append(missing, s.names[i])
		}
	}
	return missing
}

type seriesEntry struct {
	Column string   `json:"column"`
	Value  *float64 `json:"value"`
}

// MarshalJSON 以有序数组输出，缺失值编码为 null。
func (s Series) MarshalJSON() ([]byte, error) {
	entries := make([]seriesEntry, len(s.names))
	for i, name := range s.names {
		entries[i] = seriesEntry{Column: name, Value: nullable(s.values[i])}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON 解析 MarshalJSON 的输出。
func (s *Series) UnmarshalJSON(data []byte) error {
	var entries []seriesEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	names := make([]string, len(entries))
	values := make([]float64, len(entries))
	for i, e := range entries {
		names[i] = e.Column
		values[i] = math.NaN()
		if e.Value != nil {
			values[i] = *e.Value
		}
	}
	parsed, err := NewSeries(names, values)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON 将非有限统计量编码为 null。
func (m Moments) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Column string   `json:"column"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		StdDev *float64 `json:"std_dev"`
	}{
		Column: m.Column,
		Count:  m.Count,
		Mean:   nullable(m.Mean),
		StdDev: nullable(m.StdDev),
	})
}

func nullable(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

// UnmarshalJSON 将 null 统计量还原为 NaN。
func (m *Moments) UnmarshalJSON(data []byte) error {
	var raw struct {
		Column string   `json:"column"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		StdDev *float64 `json:"std_dev"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Moments{
		Column: raw.Column,
		Count:  raw.Count,
		Mean:   math.NaN(),
		StdDev: math.NaN(),
	}
	if raw.Mean != nil {
		m.Mean = *raw.Mean
	}
	if raw.StdDev != nil {
		m.StdDev = *raw.StdDev
	}
	return nil
}
