package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/entity"
)

// TaskCounts is a census of a job's task set by status.
type TaskCounts struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// TaskRepository is the persistence boundary for rows in "Task".
type TaskRepository interface {
	// CreateForJob materializes one pending task per unsummarized demand
	// file of the job. Idempotent: a file that already has a task is left
	// alone. Returns the number of tasks inserted.
	CreateForJob(ctx context.Context, jobID string) (int, error)
	ListForJob(ctx context.Context, jobID string) ([]entity.Task, error)
	MarkInProgress(ctx context.Context, taskID string, pid int) error
	MarkCompleted(ctx context.Context, taskID, outputDir string, pageCount int) error
	MarkFailed(ctx context.Context, taskID, reason string) error
	StatusCounts(ctx context.Context, jobID string) (TaskCounts, error)
}

type taskRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewTaskRepository(db *sql.DB, log *slog.Logger) TaskRepository {
	if log == nil {
		log = slog.Default()
	}
	return &taskRepo{db: db, log: log}
}

func (r *taskRepo) CreateForJob(ctx context.Context, jobID string) (int, error) {
	const filesQ = `SELECT df."id", df."fileName", df."filePath"
		FROM "DemandFile" df
		JOIN "Job" j ON j."demandNoteId" = df."demandNoteId"
		WHERE j."id" = $1 AND df."summaryStatus" = $2
		ORDER BY df."createdAt" ASC`

	rows, err := r.db.QueryContext(ctx, filesQ, jobID, string(constants.SummaryStatusNotSummarized))
	if err != nil {
		return 0, fmt.Errorf("list demand files for job %s: %w", jobID, err)
	}
	defer rows.Close()

	type pendingFile struct {
		id, name, path string
	}
	var files []pendingFile
	for rows.Next() {
		var f pendingFile
		if err := rows.Scan(&f.id, &f.name, &f.path); err != nil {
			return 0, fmt.Errorf("scan demand file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list demand files for job %s: %w", jobID, err)
	}

	// One guarded insert per file. The NOT EXISTS clause makes a second
	// materialization of the same job a no-op.
	const insertQ = `INSERT INTO "Task"
		("id", "jobId", "demandFileId", "fileName", "filePath", "status", "createdAt", "updatedAt")
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (SELECT 1 FROM "Task" t WHERE t."demandFileId" = $9)`

	created := 0
	for _, f := range files {
		now := time.Now().UTC()
		res, err := r.db.ExecContext(ctx, insertQ,
			uuid.NewString(), jobID, f.id, f.name, f.path,
			string(constants.TaskStatusPending), now, now, f.id)
		if err != nil {
			return created, fmt.Errorf("create task for file %s: %w", f.id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
			r.log.Info("task created", "job_id", jobID, "demand_file_id", f.id, "file_name", f.name)
		}
	}
	return created, nil
}

func (r *taskRepo) ListForJob(ctx context.Context, jobID string) ([]entity.Task, error) {
	const q = `SELECT "id", "jobId", "demandFileId", "fileName", "filePath",
			"outputFilePath", "status", "pid", "errorReason", "pageCount",
			"startTs", "endTs", "createdAt", "updatedAt"
		FROM "Task" WHERE "jobId" = $1 ORDER BY "createdAt" ASC`

	rows, err := r.db.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var tasks []entity.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks for job %s: %w", jobID, err)
	}
	return tasks, nil
}

func scanTask(rows *sql.Rows) (entity.Task, error) {
	var t entity.Task
	var status string
	var outputPath, errorReason sql.NullString
	var pid, pageCount sql.NullInt64
	var startTs, endTs sql.NullTime
	err := rows.Scan(&t.ID, &t.JobID, &t.DemandFileID, &t.FileName, &t.FilePath,
		&outputPath, &status, &pid, &errorReason, &pageCount,
		&startTs, &endTs, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return entity.Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.Status = constants.TaskStatus(status)
	if outputPath.Valid {
		v := outputPath.String
		t.OutputFilePath = &v
	}
	if errorReason.Valid {
		v := errorReason.String
		t.ErrorReason = &v
	}
	if pid.Valid {
		v := int(pid.Int64)
		t.PID = &v
	}
	if pageCount.Valid {
		v := int(pageCount.Int64)
		t.PageCount = &v
	}
	if startTs.Valid {
		v := startTs.Time
		t.StartTs = &v
	}
	if endTs.Valid {
		v := endTs.Time
		t.EndTs = &v
	}
	return t, nil
}

func (r *taskRepo) currentStatus(ctx context.Context, taskID string) (constants.TaskStatus, error) {
	const q = `SELECT "status" FROM "Task" WHERE "id" = $1`
	var status string
	err := r.db.QueryRowContext(ctx, q, taskID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("task %s: %w", taskID, common.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get task %s: %w", taskID, err)
	}
	return constants.TaskStatus(status), nil
}

func (r *taskRepo) checkTransition(ctx context.Context, taskID string, to constants.TaskStatus) (constants.TaskStatus, error) {
	from, err := r.currentStatus(ctx, taskID)
	if err != nil {
		return "", err
	}
	if !from.CanTransition(to) {
		r.log.Error("illegal task transition rejected",
			"task_id", taskID, "from", from, "to", to)
		return "", fmt.Errorf("task %s: %s -> %s: %w", taskID, from, to, common.ErrTransition)
	}
	return from, nil
}

func (r *taskRepo) MarkInProgress(ctx context.Context, taskID string, pid int) error {
	from, err := r.checkTransition(ctx, taskID, constants.TaskStatusInProgress)
	if err != nil {
		return err
	}

	const q = `UPDATE "Task"
		SET "status" = $1, "pid" = $2, "startTs" = $3, "updatedAt" = $4
		WHERE "id" = $5 AND "status" = $6`
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, q,
		string(constants.TaskStatusInProgress), pid, now, now, taskID, string(from))
	if err != nil {
		return fmt.Errorf("mark task %s in_progress: %w", taskID, err)
	}
	r.log.Info("task started", "task_id", taskID, "pid", pid)
	return nil
}

func (r *taskRepo) MarkCompleted(ctx context.Context, taskID, outputDir string, pageCount int) error {
	from, err := r.checkTransition(ctx, taskID, constants.TaskStatusCompleted)
	if err != nil {
		return err
	}

	const q = `UPDATE "Task"
		SET "status" = $1, "outputFilePath" = $2, "pageCount" = $3,
			"endTs" = $4, "updatedAt" = $5
		WHERE "id" = $6 AND "status" = $7`
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, q,
		string(constants.TaskStatusCompleted), outputDir, pageCount, now, now, taskID, string(from))
	if err != nil {
		return fmt.Errorf("mark task %s completed: %w", taskID, err)
	}
	r.log.Info("task completed", "task_id", taskID, "output_dir", outputDir, "pages", pageCount)
	return nil
}

func (r *taskRepo) MarkFailed(ctx context.Context, taskID, reason string) error {
	from, err := r.checkTransition(ctx, taskID, constants.TaskStatusFailed)
	if err != nil {
		return err
	}

	const q = `UPDATE "Task"
		SET "status" = $1, "errorReason" = $2, "endTs" = $3, "updatedAt" = $4
		WHERE "id" = $5 AND "status" = $6`
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, q,
		string(constants.TaskStatusFailed), reason, now, now, taskID, string(from))
	if err != nil {
		return fmt.Errorf("mark task %s failed: %w", taskID, err)
	}
	r.log.Warn("task failed", "task_id", taskID, "reason", reason)
	return nil
}

func (r *taskRepo) StatusCounts(ctx context.Context, jobID string) (TaskCounts, error) {
	const q = `SELECT "status", COUNT(*) FROM "Task" WHERE "jobId" = $1 GROUP BY "status"`

	rows, err := r.db.QueryContext(ctx, q, jobID)
	if err != nil {
		return TaskCounts{}, fmt.Errorf("count tasks for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var c TaskCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return TaskCounts{}, fmt.Errorf("scan task counts: %w", err)
		}
		c.Total += n
		switch constants.TaskStatus(status) {
		case constants.TaskStatusPending:
			c.Pending += n
		case constants.TaskStatusInProgress:
			c.InProgress += n
		case constants.TaskStatusCompleted:
			c.Completed += n
		case constants.TaskStatusFailed:
			c.Failed += n
		}
	}
	if err := rows.Err(); err != nil {
		return TaskCounts{}, fmt.Errorf("count tasks for job %s: %w", jobID, err)
	}
	return c, nil
}
