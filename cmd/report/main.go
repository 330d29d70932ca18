package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/fundingstack/docintake/internal/config"
	"github.com/fundingstack/docintake/internal/infrastructure/repository/postgres"
	"github.com/fundingstack/docintake/internal/observability/logging"
	"github.com/fundingstack/docintake/internal/report"
)

func main() {
	out := flag.String("out", "intake-report.xlsx", "output workbook path")
	window := flag.Duration("window", 24*time.Hour, "report window, counted back from now")
	limit := flag.Int("limit", 10000, "maximum documents in the report")
	flag.Parse()

	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("report", cfg.LogLevel))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	exporter := report.NewExporter(postgres.NewDocumentRepository(db), slog.Default())
	since := time.Now().UTC().Add(-*window)
	summary, err := exporter.Export(context.Background(), *out, since, *limit)
	if err != nil {
		log.Fatalf("export report: %v", err)
	}
	slog.Info("report complete", "path", *out, "documents", summary.Total, "completed", summary.Completed, "failed", summary.Failed)
}
