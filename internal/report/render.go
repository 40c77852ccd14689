package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leekchan/accounting"

	"riskmetrics/internal/risk"
)

const missingCell = "n/a"

var amountFormatter = accounting.DefaultAccounting("", 2)

// Render 将报告输出为文本表格：先输出各列样本统计量，再输出风险网格。
func Render(w io.Writer, r Report) {
	stats := newTable(w)
	stats.SetTitle(fmt.Sprintf("%s · %s · %d rows", r.Dataset, r.DataType, r.Rows))
	stats.AppendHeader(table.Row{"column", "obs", "mean", "std"})
	for _, m := range r.Moments {
		stats.AppendRow(table.Row{m.Column, m.Count, formatValue(r.DataType, m.Mean), formatValue(r.DataType, m.StdDev)})
	}
	stats.Render()

	grid := newTable(w)
	header := table.Row{"measure", "method", "confidence"}
	for _, name := range r.Columns {
		header = append(header, name)
	}
	grid.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(r.Columns))
	for i := range r.Columns {
		configs = append(configs, table.ColumnConfig{Number: i + 4, Align: text.AlignRight})
	}
	grid.SetColumnConfigs(configs)

	for _, e := range r.Entries {
		row := table.Row{strings.ToUpper(string(e.Measure)), string(e.Method), fmt.Sprintf("%.2f%%", e.Confidence*100)}
		for _, name := range r.Columns {
			v, _ := e.Values.Value(name)
			row = append(row, formatValue(r.DataType, v))
		}
		grid.AppendRow(row)
	}
	grid.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// formatValue 收益率以百分比显示，盈亏以带千分位的金额显示。
func formatValue(dataType risk.DataType, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missingCell
	}
	if dataType == risk.DataTypePnL {
		return amountFormatter.FormatMoneyFloat64(v)
	}
	return fmt.Sprintf("%.4f%%", v*100)
}
