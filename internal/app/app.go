// Package app 组装依赖，启动 HTTP 服务与后台任务
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gowvp/camcore/internal/adapter/mqttbridge"
	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/web/api"
)

const (
	relayResyncInterval = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Run 阻塞直到收到 SIGINT/SIGTERM
func Run(bc *conf.Bootstrap) error {
	_, closeLog, err := SetupLog(bc)
	if err != nil {
		return err
	}
	defer closeLog()

	uc, cleanup, err := wireApp(bc)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	startWorkers(ctx, &wg, uc)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           api.NewHTTPHandler(uc),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       bc.Server.HTTP.Timeout.Duration(),
		// SSE 与切片下载不设写超时
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("http server started", "port", bc.Server.HTTP.Port, "version", bc.BuildVersion, "role", bc.Sync.Role)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err = <-errc:
		slog.Error("http server failed", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "err", err)
	}
	cancel()
	wg.Wait()

	// 分析后端上的任务不停止，重启后由 Bootstrap 接管
	uc.Monitor.Close()
	if err := uc.Recording.Close(shutdownCtx); err != nil {
		slog.Error("recording close", "err", err)
	}
	uc.StatusBus.Close()
	uc.EventBus.Close()
	slog.Info("server gracefully stopped")
	return err
}

// startWorkers 启动后台任务，ctx 取消后全部退出
func startWorkers(ctx context.Context, wg *sync.WaitGroup, uc *api.Usecase) {
	bc := uc.Conf

	wg.Go(func() { uc.Recording.StartRetentionWorker(ctx) })
	wg.Go(func() { uc.Events.StartCleanupWorker(ctx, bc.Event.RetainDays) })
	wg.Go(func() { uc.Registry.Run(ctx, relayResyncInterval) })
	wg.Go(func() { uc.Failover.Run(ctx, bc.Failover.Interval.Duration()) })
	wg.Go(func() { uc.Sync.Run(ctx) })
	wg.Go(func() {
		if bc.Monitor.Bootstrap {
			uc.Monitor.Bootstrap(ctx)
		}
		uc.Monitor.RunReconcile(ctx, bc.Monitor.ReconcileInterval.Duration())
	})

	cli, err := mqttbridge.Connect(bc.MQTT)
	if err != nil {
		// MQTT 不可用不影响主流程
		slog.Warn("mqtt disabled", "broker", bc.MQTT.Broker, "err", err)
		return
	}
	if cli == nil {
		return
	}
	wg.Go(func() {
		defer cli.Close()
		mqttbridge.NewBridge(cli, bc.MQTT.TopicPrefix).Run(ctx, uc.StatusBus, uc.EventBus)
	})
}
