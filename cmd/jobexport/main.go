package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/export"
	repo "github.com/legasys-dev/demand-pipeline/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 3 {
		logger.Error("usage", "cmd", "jobexport <job-id> <out.xlsx>")
		os.Exit(2)
	}
	jobID, outPath := os.Args[1], os.Args[2]

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, pool, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	tasksRepo := repo.NewTaskRepository(db, logger)
	jobsRepo := repo.NewJobRepository(db, tasksRepo, logger)

	svc := export.NewService(jobsRepo, tasksRepo, logger)
	data, err := svc.ExportJobReportXLSX(ctx, jobID)
	if err != nil {
		logger.Error("export failed", "job_id", jobID, "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		logger.Error("write workbook", "path", outPath, "error", err)
		os.Exit(1)
	}
	logger.Info("report written", "job_id", jobID, "path", outPath, "bytes", len(data))
}
