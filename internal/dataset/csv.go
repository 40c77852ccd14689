package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// CSVOptions 控制 CSV 解析行为。
type CSVOptions struct {
	// IndexColumn 为 true 时首列作为行索引（通常为日期），不参与计算。
	IndexColumn bool
	// Comma 为字段分隔符，默认为逗号。
	Comma rune
	// MissingMarkers 覆盖默认的缺失值标记。
	MissingMarkers []string
}

// DefaultMissingMarkers 为识别为缺失值的单元格内容。
var DefaultMissingMarkers = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "-"}

// DefaultCSVOptions 返回首列为索引的默认配置。
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{IndexColumn: true, Comma: ','}
}

// LoadCSV 从文件读取数据集。
func LoadCSV(path string, opts CSVOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: 打开文件 %q 失败: %w", path, err)
	}
	defer file.Close()

	frame, err := ReadCSV(file, opts)
	if err != nil {
		return nil, fmt.Errorf("dataset: 解析文件 %q 失败: %w", path, err)
	}
	return frame, nil
}

// ReadCSV 解析带表头的 CSV。首行为列名，之后每行为一条观测。
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	markers := opts.MissingMarkers
	if len(markers) == 0 {
		markers = DefaultMissingMarkers
	}
	missing := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		missing[m] = struct{}{}
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset: CSV 缺少表头")
		}
		return nil, fmt.Errorf("dataset: 读取表头失败: %w", err)
	}

	offset := 0
	if opts.IndexColumn {
		offset = 1
	}
	if len(header) <= offset {
		return nil, errors.New("dataset: CSV 不包含数据列")
	}

	columns := make([]string, 0, len(header)-offset)
	for _, name := range header[offset:] {
		columns = append(columns, strings.TrimSpace(name))
	}

	var index []string
	data := make([][]float64, len(columns))

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: 读取第 %d 行失败: %w", line, err)
		}

		if opts.IndexColumn {
			index = append(index, strings.TrimSpace(record[0]))
		}
		for i, cell := range record[offset:] {
			v, err := parseCell(cell, missing)
			if err != nil {
				return nil, fmt.Errorf("dataset: 第 %d 行列 %q: %w", line, columns[i], err)
			}
			data[i] = append(data[i], v)
		}
	}

	return New(index, columns, data)
}

func parseCell(cell string, missing map[string]struct{}) (float64, error) {
	cell = strings.TrimSpace(cell)
	if _, ok := missing[cell]; ok {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析数值 %q", cell)
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("不支持的无穷值 %q", cell)
	}
	return v, nil
}
