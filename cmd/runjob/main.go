package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/extract"
	"github.com/legasys-dev/demand-pipeline/internal/pathresolve"
	"github.com/legasys-dev/demand-pipeline/internal/pipeline"
	repo "github.com/legasys-dev/demand-pipeline/internal/repository"
)

func main() {
	// Optional .env for local runs; production sets real environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("job ID not provided", "usage", "runjob <job-id>")
		os.Exit(1)
	}
	jobID := os.Args[1]
	pid := os.Getpid()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, pool, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	tasksRepo := repo.NewTaskRepository(db, logger)
	jobsRepo := repo.NewJobRepository(db, tasksRepo, logger)
	filesRepo := repo.NewDemandFileRepository(db, logger)

	resolver := pathresolve.NewResolver(cfg.Storage, logger)
	extractor := extract.NewPDFExtractor(cfg.Extract.DensityThreshold, logger)
	driver := pipeline.NewDriver(resolver, extractor, logger)

	orch := pipeline.NewOrchestrator(jobsRepo, tasksRepo, filesRepo, driver, pid, logger)

	start := time.Now()
	if err := orch.Run(ctx, jobID); err != nil {
		logger.Error("job run failed",
			"job_id", jobID, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("job run finished",
		"job_id", jobID, "duration_ms", time.Since(start).Milliseconds())
}
