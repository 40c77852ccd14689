package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"riskmetrics/internal/config"
	"riskmetrics/internal/dataset"
	"riskmetrics/internal/report"
	"riskmetrics/internal/risk"
	"riskmetrics/internal/store"
)

// App 聚合核心依赖并驱动一次完整的风险评估。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	out    io.Writer
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		out:    os.Stdout,
	}
}

// SetOutput 指定报告表格的输出位置。
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// Run 加载全部数据集并生成、保存报告；启用接口时阻塞至 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("风险评估开始",
		zap.String("environment", a.cfg.App.Environment),
		zap.Int("datasets", len(a.cfg.Datasets)),
		zap.Float64s("confidence_levels", a.cfg.Risk.ConfidenceLevels),
		zap.Strings("methods", a.cfg.Risk.Methods),
	)

	reports, err := report.NewStore(ctx, a.store, a.logger.Named("report"))
	if err != nil {
		return err
	}

	results, err := a.Evaluate(ctx, reports)
	if err != nil {
		return err
	}

	if a.cfg.App.PrintReport {
		for _, r := range results {
			report.Render(a.out, r)
		}
	}

	if !a.cfg.Server.Enabled {
		return nil
	}

	if err := startReportServer(ctx, reports, a.cfg.Server.Port, a.logger); err != nil {
		return err
	}

	<-ctx.Done()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

// Evaluate 并发处理各数据集，每个数据集使用独立的估计器，结果按配置顺序返回。
func (a *App) Evaluate(ctx context.Context, reports *report.Store) ([]report.Report, error) {
	methods := make([]risk.Method, 0, len(a.cfg.Risk.Methods))
	for _, name := range a.cfg.Risk.Methods {
		m, err := risk.ParseMethod(name)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}

	builder, err := report.NewBuilder(a.cfg.Risk.ConfidenceLevels, methods, a.logger.Named("builder"))
	if err != nil {
		return nil, err
	}

	results := make([]report.Report, len(a.cfg.Datasets))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.cfg.App.Concurrency)

	for i, ds := range a.cfg.Datasets {
		i, ds := i, ds
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			r, err := a.evaluateDataset(builder, ds)
			if err != nil {
				return fmt.Errorf("数据集 %s: %w", ds.Name, err)
			}

			if reports != nil {
				id, err := reports.Save(groupCtx, r)
				if err != nil {
					return fmt.Errorf("数据集 %s: %w", ds.Name, err)
				}
				r.ID = id
			}

			results[i] = r
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (a *App) evaluateDataset(builder *report.Builder, ds config.DatasetConfig) (report.Report, error) {
	dataType, err := risk.ParseDataType(ds.DataType)
	if err != nil {
		return report.Report{}, err
	}

	opts := dataset.DefaultCSVOptions()
	opts.IndexColumn = ds.HasIndex()
	if ds.Delimiter != "" {
		opts.Comma = []rune(ds.Delimiter)[0]
	}

	frame, err := dataset.LoadCSV(ds.Path, opts)
	if err != nil {
		return report.Report{}, err
	}
	frame, err = frame.Select(ds.Columns...)
	if err != nil {
		return report.Report{}, err
	}

	a.logger.Info("数据集加载完成",
		zap.String("dataset", ds.Name),
		zap.String("path", ds.Path),
		zap.String("data_type", string(dataType)),
		zap.Int("rows", frame.Len()),
		zap.Strings("columns", frame.Columns()),
	)

	r, err := builder.Build(ds.Name, frame, dataType)
	if err != nil {
		return report.Report{}, err
	}

	a.logger.Info("风险报告生成完成",
		zap.String("dataset", ds.Name),
		zap.Int("entries", len(r.Entries)),
	)

	return r, nil
}
