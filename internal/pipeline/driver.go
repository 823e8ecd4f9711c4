package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/entity"
	"github.com/legasys-dev/demand-pipeline/internal/extract"
	"github.com/legasys-dev/demand-pipeline/internal/output"
	"github.com/legasys-dev/demand-pipeline/internal/pathresolve"
)

// Driver composes path resolution, extraction, and output writing into the
// single per-file operation the orchestrator invokes per task.
type Driver struct {
	Resolver  *pathresolve.Resolver
	Extractor extract.PageExtractor
	Log       *slog.Logger
}

func NewDriver(resolver *pathresolve.Resolver, extractor extract.PageExtractor, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{Resolver: resolver, Extractor: extractor, Log: log}
}

// Result summarizes one processed file.
type Result struct {
	OutputDir      string
	PagesExtracted int
	FilesCreated   []string
}

// Process extracts one task's PDF into its per-page artifact tree.
func (d *Driver) Process(ctx context.Context, task entity.Task) (Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(task.FileName))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return Result{}, fmt.Errorf("unsupported file type %q for %s", ext, task.FileName)
	}

	d.Log.Info("locating input file", "task_id", task.ID, "path", task.FilePath)
	inputPath, err := d.Resolver.Locate(task.FilePath)
	if err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", inputPath, err)
	}

	d.Log.Info("extracting text", "task_id", task.ID, "bytes", len(data))
	res, err := d.Extractor.ExtractPages(ctx, data)
	if err != nil {
		return Result{}, err
	}
	d.Log.Info("extracted pages", "task_id", task.ID,
		"pages", len(res.Pages), "degraded", len(res.DegradedPages),
		"duration_ms", res.Duration.Milliseconds())

	var known string
	if task.OutputFilePath != nil {
		known = *task.OutputFilePath
	}
	outDir := d.Resolver.OutputDir(task.JobID, task.FileName, known)

	writer := output.NewWriter(outDir)
	if err := writer.EnsureLayout(); err != nil {
		return Result{}, err
	}
	files, err := writer.WritePages(res.Pages)
	if err != nil {
		return Result{}, err
	}
	if err := writer.WriteManifest(output.RunManifest{
		TaskID:         task.ID,
		JobID:          task.JobID,
		DemandFileID:   task.DemandFileID,
		FileName:       task.FileName,
		PagesExtracted: len(res.Pages),
		DegradedPages:  res.DegradedPages,
		Files:          files,
		ExtractedAt:    time.Now().UTC(),
	}); err != nil {
		return Result{}, err
	}

	d.Log.Info("saved page artifacts", "task_id", task.ID, "output_dir", outDir, "files", len(files))
	return Result{OutputDir: outDir, PagesExtracted: len(res.Pages), FilesCreated: files}, nil
}
