package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/repository"
)

// Orchestrator is the job/task state machine: it materializes one task per
// unprocessed demand file, runs them strictly sequentially through the
// Driver, and keeps job status derived from the aggregate task outcomes
// after every transition.
type Orchestrator struct {
	Jobs   repository.JobRepository
	Tasks  repository.TaskRepository
	Files  repository.DemandFileRepository
	Driver *Driver
	PID    int
	Log    *slog.Logger
}

func NewOrchestrator(jobs repository.JobRepository, tasks repository.TaskRepository,
	files repository.DemandFileRepository, driver *Driver, pid int, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{Jobs: jobs, Tasks: tasks, Files: files, Driver: driver, PID: pid, Log: log}
}

// Run executes one job end to end. A missing job is logged and swallowed;
// per-task failures are recorded and never abort the loop; errors escaping
// the store operations mark the job failed and are returned for the caller
// to exit non-zero on.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.Jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			o.Log.Warn("job not found", "job_id", jobID)
			return nil
		}
		return o.failJob(ctx, jobID, err)
	}

	if job.Status.Terminal() {
		o.Log.Info("job already terminal, nothing to do", "job_id", jobID, "status", job.Status)
		return nil
	}

	o.Log.Info("starting job", "job_id", jobID, "pid", o.PID, "status", job.Status)
	if err := o.Jobs.MarkInProgress(ctx, jobID); err != nil {
		return o.failJob(ctx, jobID, err)
	}

	created, err := o.Tasks.CreateForJob(ctx, jobID)
	if err != nil {
		return o.failJob(ctx, jobID, err)
	}
	o.Log.Info("tasks materialized", "job_id", jobID, "created", created)

	tasks, err := o.Tasks.ListForJob(ctx, jobID)
	if err != nil {
		return o.failJob(ctx, jobID, err)
	}
	if len(tasks) == 0 {
		// A job with nothing to do must not look successful.
		o.Log.Warn("no tasks for job", "job_id", jobID)
		if err := o.Jobs.MarkFailed(ctx, jobID, "no tasks materialized: no unsummarized demand files found"); err != nil {
			return err
		}
		return nil
	}

	for _, task := range tasks {
		if task.Status != constants.TaskStatusPending {
			// Covers terminal tasks from an earlier run and tasks a killed
			// process left in_progress; there is no reclamation mechanism.
			o.Log.Info("skipping non-pending task", "task_id", task.ID, "status", task.Status)
			continue
		}

		o.Log.Info("processing task", "task_id", task.ID, "file_name", task.FileName)
		if err := o.Tasks.MarkInProgress(ctx, task.ID, o.PID); err != nil {
			return o.failJob(ctx, jobID, err)
		}

		res, procErr := o.Driver.Process(ctx, task)
		if procErr != nil {
			o.Log.Error("task processing failed", "task_id", task.ID, "error", procErr)
			if err := o.Tasks.MarkFailed(ctx, task.ID, procErr.Error()); err != nil {
				return o.failJob(ctx, jobID, err)
			}
		} else {
			if err := o.Tasks.MarkCompleted(ctx, task.ID, res.OutputDir, res.PagesExtracted); err != nil {
				return o.failJob(ctx, jobID, err)
			}
			if err := o.Files.MarkSummarized(ctx, task.DemandFileID, res.OutputDir); err != nil {
				return o.failJob(ctx, jobID, err)
			}
			o.Log.Info("task completed", "task_id", task.ID, "pages", res.PagesExtracted)
		}

		status, err := o.Jobs.Recompute(ctx, jobID)
		if err != nil {
			return o.failJob(ctx, jobID, err)
		}
		o.Log.Info("job status", "job_id", jobID, "status", status)
	}

	return nil
}

// failJob records an unrecoverable top-level failure on the job and returns
// the original error for the caller.
func (o *Orchestrator) failJob(ctx context.Context, jobID string, cause error) error {
	o.Log.Error("job failed with critical error", "job_id", jobID, "error", cause)
	reason := fmt.Sprintf("critical error: %v", cause)
	if err := o.Jobs.MarkFailed(ctx, jobID, reason); err != nil {
		o.Log.Error("could not record job failure", "job_id", jobID, "error", err)
	}
	return cause
}
