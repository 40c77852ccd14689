package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"riskmetrics/internal/report"
)

func newReportHandler(reports *report.Store, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 50
		if qs := q.Get("limit"); qs != "" {
			if v, err := strconv.Atoi(qs); err == nil && v > 0 {
				if v > 500 {
					v = 500
				}
				limit = v
			}
		}

		summaries, err := reports.List(r.Context(), strings.TrimSpace(q.Get("dataset")), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, summaries, logger)
	})

	mux.HandleFunc("/reports/latest", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("dataset"))
		if name == "" {
			http.Error(w, "缺少 dataset 参数", http.StatusBadRequest)
			return
		}

		rep, err := reports.Latest(r.Context(), name)
		if errors.Is(err, report.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rep, logger)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入报告响应失败", zap.Error(err))
	}
}

// startReportServer 先完成端口监听再返回，监听失败直接返回错误。
func startReportServer(ctx context.Context, reports *report.Store, port int, logger *zap.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("报告接口监听 %s 失败: %w", addr, err)
	}
	srv := &http.Server{Addr: addr, Handler: newReportHandler(reports, logger)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("关闭报告服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("报告服务异常", zap.Error(err))
		}
	}()

	logger.Info("报告接口已启动", zap.String("addr", ln.Addr().String()))
	return nil
}
