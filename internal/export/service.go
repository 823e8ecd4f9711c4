package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/legasys-dev/demand-pipeline/internal/repository"
)

// Service is a tiny façade over the repositories that produces XLSX bytes
// for operator-facing job reports.
type Service struct {
	jobsRepo  repository.JobRepository
	tasksRepo repository.TaskRepository
	logger    *slog.Logger
}

func NewService(jobs repository.JobRepository, tasks repository.TaskRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobs, tasksRepo: tasks, logger: logger}
}

// ExportJobReportXLSX returns an XLSX workbook (as bytes) summarizing a
// job's task ledger: one row per task plus the aggregate job line.
func (s *Service) ExportJobReportXLSX(ctx context.Context, jobID string) ([]byte, error) {
	start := time.Now()

	job, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	tasks, err := s.tasksRepo.ListForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Tasks"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	// Job header block.
	write(1, 1, "Job")
	write(2, 1, job.ID)
	write(3, 1, string(job.Status))
	write(4, 1, job.UpdateTs.Format(time.RFC3339))

	headers := []string{
		"File Name",
		"Status",
		"Pages",
		"Started",
		"Finished",
		"Output Path",
		"Error Reason",
	}
	for i, h := range headers {
		write(i+1, 3, h)
	}

	row := 4
	for _, t := range tasks {
		write(1, row, t.FileName)
		write(2, row, string(t.Status))
		if t.PageCount != nil {
			write(3, row, *t.PageCount)
		}
		if t.StartTs != nil {
			write(4, row, t.StartTs.Format(time.RFC3339))
		}
		if t.EndTs != nil {
			write(5, row, t.EndTs.Format(time.RFC3339))
		}
		if t.OutputFilePath != nil {
			write(6, row, *t.OutputFilePath)
		}
		if t.ErrorReason != nil {
			write(7, row, *t.ErrorReason)
		}
		row++
	}

	// Remove the default sheet if it is not ours.
	if name := f.GetSheetName(0); name != sheet {
		_ = f.DeleteSheet(name)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("job report exported",
		"job_id", jobID, "tasks", len(tasks), "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
