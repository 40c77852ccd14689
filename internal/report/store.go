package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"riskmetrics/internal/risk"
	"riskmetrics/internal/store"
)

// ErrNotFound 表示未找到对应报告。
var ErrNotFound = errors.New("report: 报告不存在")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS risk_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset TEXT NOT NULL,
		data_type TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		columns TEXT NOT NULL,
		moments TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_risk_reports_dataset ON risk_reports(dataset, id);`,
	`CREATE TABLE IF NOT EXISTS risk_report_values (
		report_id INTEGER NOT NULL REFERENCES risk_reports(id) ON DELETE CASCADE,
		measure TEXT NOT NULL,
		method TEXT NOT NULL,
		confidence REAL NOT NULL,
		position INTEGER NOT NULL,
		column_name TEXT NOT NULL,
		value REAL,
		PRIMARY KEY (report_id, measure, method, confidence, position)
	);`,
}

// Store 负责持久化风险报告。
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore 初始化报告存储并创建表结构。
func NewStore(ctx context.Context, st *store.Store, logger *zap.Logger) (*Store, error) {
	if st == nil {
		return nil, errors.New("report: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := st.Migrate(ctx, schema...); err != nil {
		return nil, fmt.Errorf("report: 初始化表结构失败: %w", err)
	}

	return &Store{db: st.DB(), logger: logger}, nil
}

// Save 在单个事务中写入报告及其全部数值，返回报告 ID。缺失值写为 NULL。
func (s *Store) Save(ctx context.Context, r Report) (int64, error) {
	columns, err := json.Marshal(r.Columns)
	if err != nil {
		return 0, fmt.Errorf("report: 序列化列名失败: %w", err)
	}
	moments, err := json.Marshal(r.Moments)
	if err != nil {
		return 0, fmt.Errorf("report: 序列化统计量失败: %w", err)
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("report: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO risk_reports (dataset, data_type, row_count, columns, moments, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Dataset, string(r.DataType), r.Rows, string(columns), string(moments),
		r.GeneratedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		err = fmt.Errorf("report: 写入报告失败: %w", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		err = fmt.Errorf("report: 获取报告 ID 失败: %w", err)
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO risk_report_values (report_id, measure, method, confidence, position, column_name, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		err = fmt.Errorf("report: 预编译语句失败: %w", err)
		return 0, err
	}
	defer stmt.Close()

	for _, e := range r.Entries {
		for i := 0; i < e.Values.Len(); i++ {
			name, v := e.Values.At(i)
			value := sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
			if _, err = stmt.ExecContext(ctx, id, string(e.Measure), string(e.Method), e.Confidence, i, name, value); err != nil {
				err = fmt.Errorf("report: 写入结果失败: %w", err)
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("report: 提交事务失败: %w", err)
		return 0, err
	}

	s.logger.Debug("风险报告已保存",
		zap.Int64("id", id),
		zap.String("dataset", r.Dataset),
		zap.Int("entries", len(r.Entries)),
	)

	return id, nil
}

// Get 按 ID 读取完整报告。
func (s *Store) Get(ctx context.Context, id int64) (Report, error) {
	var (
		r           Report
		dataType    string
		columns     string
		moments     string
		generatedAt string
	)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, data_type, row_count, columns, moments, generated_at FROM risk_reports WHERE id = ?`, id)
	if err := row.Scan(&r.ID, &r.Dataset, &dataType, &r.Rows, &columns, &moments, &generatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("report: 查询报告失败: %w", err)
	}

	r.DataType = risk.DataType(dataType)
	if err := json.Unmarshal([]byte(columns), &r.Columns); err != nil {
		return Report{}, fmt.Errorf("report: 解析列名失败: %w", err)
	}
	if err := json.Unmarshal([]byte(moments), &r.Moments); err != nil {
		return Report{}, fmt.Errorf("report: 解析统计量失败: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return Report{}, fmt.Errorf("report: 解析生成时间失败: %w", err)
	}
	r.GeneratedAt = ts

	entries, err := s.loadEntries(ctx, id)
	if err != nil {
		return Report{}, err
	}
	r.Entries = entries

	return r, nil
}

// Latest 返回指定数据集最近一次的报告。
func (s *Store) Latest(ctx context.Context, dataset string) (Report, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM risk_reports WHERE dataset = ? ORDER BY id DESC LIMIT 1`, dataset,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("report: 查询最新报告失败: %w", err)
	}
	return s.Get(ctx, id)
}

// List 按时间倒序返回报告概要，dataset 为空时不过滤。
func (s *Store) List(ctx context.Context, dataset string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, dataset, data_type, row_count, generated_at FROM risk_reports`
	args := make([]interface{}, 0, 2)
	if dataset != "" {
		query += ` WHERE dataset = ?`
		args = append(args, dataset)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: 查询报告列表失败: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, limit)
	for rows.Next() {
		var (
			sum      Summary
			dataType string
			created  string
		)
		if err := rows.Scan(&sum.ID, &sum.Dataset, &dataType, &sum.Rows, &created); err != nil {
			return nil, fmt.Errorf("report: 解析报告列表失败: %w", err)
		}
		sum.DataType = risk.DataType(dataType)
		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			s.logger.Warn("报告生成时间格式异常", zap.Int64("id", sum.ID), zap.String("generated_at", created))
		}
		sum.GeneratedAt = ts
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: 读取报告列表失败: %w", err)
	}

	return summaries, nil
}

type entryKey struct {
	measure    string
	method     string
	confidence float64
}

func (s *Store) loadEntries(ctx context.Context, id int64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT measure, method, confidence, column_name, value
		 FROM risk_report_values WHERE report_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("report: 查询结果失败: %w", err)
	}
	defer rows.Close()

	var (
		entries []Entry
		current entryKey
		names   []string
		values  []float64
		started bool
	)

	flush := func() error {
		if !started {
			return nil
		}
		series, err := risk.NewSeries(names, values)
		if err != nil {
			return fmt.Errorf("report: 还原结果失败: %w", err)
		}
		entries = append(entries, Entry{
			Measure:    risk.Measure(current.measure),
			Method:     risk.Method(current.method),
			Confidence: current.confidence,
			Values:     series,
		})
		names, values = nil, nil
		return nil
	}

	for rows.Next() {
		var (
			key   entryKey
			name  string
			value sql.NullFloat64
		)
		if err := rows.Scan(&key.measure, &key.method, &key.confidence, &name, &value); err != nil {
			return nil, fmt.Errorf("report: 解析结果失败: %w", err)
		}
		if !started || key != current {
			if err := flush(); err != nil {
				return nil, err
			}
			current = key
			started = true
		}
		names = append(names, name)
		if value.Valid {
			values = append(values, value.Float64)
		} else {
			values = append(values, math.NaN())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: 读取结果失败: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return entries, nil
}
