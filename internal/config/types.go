package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Datasets []DatasetConfig `mapstructure:"datasets"`
	Risk     RiskConfig      `mapstructure:"risk"`
	Database DatabaseConfig  `mapstructure:"database"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Server   ServerConfig    `mapstructure:"server"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	Concurrency int    `mapstructure:"concurrency"`
	PrintReport bool   `mapstructure:"print_report"`
}

// DatasetConfig 描述一个待评估的数据集。
type DatasetConfig struct {
	Name        string   `mapstructure:"name"`
	Path        string   `mapstructure:"path"`
	DataType    string   `mapstructure:"data_type"`
	IndexColumn *bool    `mapstructure:"index_column"`
	Delimiter   string   `mapstructure:"delimiter"`
	Columns     []string `mapstructure:"columns"`
}

// HasIndex 返回首列是否为行索引，未配置时默认为 true。
func (d DatasetConfig) HasIndex() bool {
	return d.IndexColumn == nil || *d.IndexColumn
}

// RiskConfig 管理风险计算网格。
type RiskConfig struct {
	ConfidenceLevels []float64 `mapstructure:"confidence_levels"`
	Methods          []string  `mapstructure:"methods"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ServerConfig 控制报告查询接口。
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

var (
	knownMethods   = map[string]struct{}{"parametric": {}, "historical": {}}
	knownDataTypes = map[string]struct{}{"returns": {}, "pnl": {}}
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.App.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("app.concurrency 必须大于0"))
	}

	if len(c.Datasets) == 0 {
		err = multierr.Append(err, errors.New("datasets 至少包含一个数据集"))
	}
	names := make(map[string]struct{}, len(c.Datasets))
	for i, ds := range c.Datasets {
		prefix := fmt.Sprintf("datasets[%d]", i)
		if ds.Name == "" {
			err = multierr.Append(err, fmt.Errorf("%s.name 不能为空", prefix))
		} else if _, dup := names[ds.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("%s.name %q 重复", prefix, ds.Name))
		}
		names[ds.Name] = struct{}{}
		if ds.Path == "" {
			err = multierr.Append(err, fmt.Errorf("%s.path 不能为空", prefix))
		}
		if _, ok := knownDataTypes[strings.ToLower(ds.DataType)]; !ok {
			err = multierr.Append(err, fmt.Errorf("%s.data_type 必须为 returns 或 pnl", prefix))
		}
		if len([]rune(ds.Delimiter)) > 1 {
			err = multierr.Append(err, fmt.Errorf("%s.delimiter 只能是单个字符", prefix))
		}
	}

	if len(c.Risk.ConfidenceLevels) == 0 {
		err = multierr.Append(err, errors.New("risk.confidence_levels 至少包含一个置信水平"))
	}
	levels := make(map[float64]struct{}, len(c.Risk.ConfidenceLevels))
	for _, level := range c.Risk.ConfidenceLevels {
		if !(level > 0 && level < 1) {
			err = multierr.Append(err, fmt.Errorf("risk.confidence_levels 中的 %v 必须位于(0,1)", level))
			continue
		}
		if _, dup := levels[level]; dup {
			err = multierr.Append(err, fmt.Errorf("risk.confidence_levels 中的 %v 重复", level))
		}
		levels[level] = struct{}{}
	}
	if len(c.Risk.Methods) == 0 {
		err = multierr.Append(err, errors.New("risk.methods 至少包含一种方法"))
	}
	methods := make(map[string]struct{}, len(c.Risk.Methods))
	for _, m := range c.Risk.Methods {
		key := strings.ToLower(strings.TrimSpace(m))
		if _, ok := knownMethods[key]; !ok {
			err = multierr.Append(err, fmt.Errorf("risk.methods 中的 %q 仅支持 parametric 或 historical", m))
			continue
		}
		if _, dup := methods[key]; dup {
			err = multierr.Append(err, fmt.Errorf("risk.methods 中的 %q 重复", m))
		}
		methods[key] = struct{}{}
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		err = multierr.Append(err, errors.New("server.port 必须位于[1,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
