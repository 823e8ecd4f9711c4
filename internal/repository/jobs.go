package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/entity"
)

// Queries use $1..$n placeholders in strict first-use order with no reuse,
// so the same SQL binds positionally on both Postgres and the SQLite driver
// used in tests. Table and column names are the web application's (quoted,
// camelCase) — they are an external contract, not ours to rename.

// JobRepository is the persistence boundary for rows in "Job".
type JobRepository interface {
	GetByID(ctx context.Context, jobID string) (*entity.Job, error)
	MarkInProgress(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
	// Recompute derives job status from the task-set counts and persists it
	// if changed. It returns the derived status.
	Recompute(ctx context.Context, jobID string) (constants.JobStatus, error)
}

type jobRepo struct {
	db    *sql.DB
	tasks TaskRepository
	log   *slog.Logger
}

func NewJobRepository(db *sql.DB, tasks TaskRepository, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, tasks: tasks, log: log}
}

func (r *jobRepo) GetByID(ctx context.Context, jobID string) (*entity.Job, error) {
	const q = `SELECT "id", "demandNoteId", "status", "summary", "updateTs"
		FROM "Job" WHERE "id" = $1`

	var job entity.Job
	var summary sql.NullString
	var status string
	err := r.db.QueryRowContext(ctx, q, jobID).Scan(
		&job.ID, &job.DemandNoteID, &status, &summary, &job.UpdateTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	job.Status = constants.JobStatus(status)
	if summary.Valid {
		v := summary.String
		job.Summary = &v
	}
	return &job, nil
}

func (r *jobRepo) setStatus(ctx context.Context, jobID string, to constants.JobStatus, summary *string) error {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanTransition(to) {
		r.log.Error("illegal job transition rejected",
			"job_id", jobID, "from", job.Status, "to", to)
		return fmt.Errorf("job %s: %s -> %s: %w", jobID, job.Status, to, common.ErrTransition)
	}
	if job.Status == to && summary == nil {
		return nil
	}

	now := time.Now().UTC()
	var res sql.Result
	if summary != nil {
		const q = `UPDATE "Job" SET "status" = $1, "summary" = $2, "updateTs" = $3
			WHERE "id" = $4 AND "status" = $5`
		res, err = r.db.ExecContext(ctx, q, string(to), *summary, now, jobID, string(job.Status))
	} else {
		const q = `UPDATE "Job" SET "status" = $1, "updateTs" = $2
			WHERE "id" = $3 AND "status" = $4`
		res, err = r.db.ExecContext(ctx, q, string(to), now, jobID, string(job.Status))
	}
	if err != nil {
		r.log.Error("job status update failed", "job_id", jobID, "to", to, "error", err)
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost a race against another process; the store is the source of truth.
		r.log.Warn("job status changed underneath us, skipping write",
			"job_id", jobID, "to", to)
		return nil
	}
	r.log.Info("job status updated", "job_id", jobID, "from", job.Status, "to", to)
	return nil
}

func (r *jobRepo) MarkInProgress(ctx context.Context, jobID string) error {
	return r.setStatus(ctx, jobID, constants.JobStatusInProgress, nil)
}

func (r *jobRepo) MarkFailed(ctx context.Context, jobID, reason string) error {
	// The contract has no dedicated failure column on "Job"; the reason goes
	// into the summary text so operators see it where the web app looks.
	return r.setStatus(ctx, jobID, constants.JobStatusFailed, &reason)
}

// DeriveStatus maps a task-set census onto a job status:
// all terminal and successful -> completed; all terminal with at least one
// failure -> failed; anything non-terminal -> in_progress.
func DeriveStatus(c TaskCounts) constants.JobStatus {
	switch {
	case c.Total == 0:
		return constants.JobStatusInProgress
	case c.Completed == c.Total:
		return constants.JobStatusCompleted
	case c.Completed+c.Failed == c.Total:
		return constants.JobStatusFailed
	default:
		return constants.JobStatusInProgress
	}
}

func (r *jobRepo) Recompute(ctx context.Context, jobID string) (constants.JobStatus, error) {
	counts, err := r.tasks.StatusCounts(ctx, jobID)
	if err != nil {
		return "", err
	}
	if counts.Total == 0 {
		// Nothing materialized; leave the job alone here. The orchestrator
		// fails a zero-task job explicitly with a reason.
		return constants.JobStatusInProgress, nil
	}

	derived := DeriveStatus(counts)
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status == derived {
		return derived, nil
	}
	if derived == constants.JobStatusFailed {
		reason := fmt.Sprintf("%d out of %d tasks failed", counts.Failed, counts.Total)
		return derived, r.setStatus(ctx, jobID, derived, &reason)
	}
	return derived, r.setStatus(ctx, jobID, derived, nil)
}
