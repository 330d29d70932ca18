package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundingstack/docintake/internal/bootstrap"
	"github.com/fundingstack/docintake/internal/config"
	"github.com/fundingstack/docintake/internal/core/usecase"
	"github.com/fundingstack/docintake/internal/observability/logging"
	"github.com/fundingstack/docintake/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := metrics.NewPipelineMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, slog.Default(), sink)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: sink.Handler()}
	go func() {
		slog.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	pool := usecase.NewWorkerPool(app.ProcessUC, cfg.ProcessingWorkers, cfg.QueueMaxSize, cfg.ProcessTimeout, slog.Default())
	pool.Start(ctx)
	go logStats(ctx, app.ProcessUC)

	slog.Info("worker subscribed", "subject", cfg.NATSSubject, "workers", cfg.ProcessingWorkers)
	err = app.Queue.SubscribeDocumentReceived(ctx, func(_ context.Context, documentID string) error {
		return pool.Submit(documentID)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	// Subscribe returns once the context is canceled; drain in-flight work
	// before tearing down the metrics endpoint.
	pool.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func logStats(ctx context.Context, uc *usecase.ProcessDocumentUseCase) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := uc.Stats()
			slog.Info("processing stats",
				"processed", stats.Processed,
				"failed", stats.Failed,
				"avg_confidence", stats.AverageConfidence,
			)
		}
	}
}
