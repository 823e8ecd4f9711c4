package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/entity"
)

// DemandFileRepository is the persistence boundary for rows in "DemandFile".
// The pipeline reads these and performs exactly one write: the terminal flip
// to summarized with the resolved output path.
type DemandFileRepository interface {
	GetByID(ctx context.Context, fileID string) (*entity.DemandFile, error)
	ListUnsummarizedForJob(ctx context.Context, jobID string) ([]entity.DemandFile, error)
	MarkSummarized(ctx context.Context, fileID, outputDir string) error
}

type demandFileRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewDemandFileRepository(db *sql.DB, log *slog.Logger) DemandFileRepository {
	if log == nil {
		log = slog.Default()
	}
	return &demandFileRepo{db: db, log: log}
}

func (r *demandFileRepo) GetByID(ctx context.Context, fileID string) (*entity.DemandFile, error) {
	const q = `SELECT "id", "demandNoteId", "fileName", "filePath", "summaryStatus", "createdAt"
		FROM "DemandFile" WHERE "id" = $1`

	var f entity.DemandFile
	var status string
	err := r.db.QueryRowContext(ctx, q, fileID).Scan(
		&f.ID, &f.DemandNoteID, &f.FileName, &f.FilePath, &status, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("demand file %s: %w", fileID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get demand file %s: %w", fileID, err)
	}
	f.SummaryStatus = constants.SummaryStatus(status)
	return &f, nil
}

func (r *demandFileRepo) ListUnsummarizedForJob(ctx context.Context, jobID string) ([]entity.DemandFile, error) {
	const q = `SELECT df."id", df."demandNoteId", df."fileName", df."filePath", df."summaryStatus", df."createdAt"
		FROM "DemandFile" df
		JOIN "Job" j ON j."demandNoteId" = df."demandNoteId"
		WHERE j."id" = $1 AND df."summaryStatus" = $2
		ORDER BY df."createdAt" ASC`

	rows, err := r.db.QueryContext(ctx, q, jobID, string(constants.SummaryStatusNotSummarized))
	if err != nil {
		return nil, fmt.Errorf("list unsummarized files for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var files []entity.DemandFile
	for rows.Next() {
		var f entity.DemandFile
		var status string
		if err := rows.Scan(&f.ID, &f.DemandNoteID, &f.FileName, &f.FilePath, &status, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan demand file: %w", err)
		}
		f.SummaryStatus = constants.SummaryStatus(status)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unsummarized files for job %s: %w", jobID, err)
	}
	return files, nil
}

func (r *demandFileRepo) MarkSummarized(ctx context.Context, fileID, outputDir string) error {
	const q = `UPDATE "DemandFile"
		SET "summaryStatus" = $1, "filePath" = $2
		WHERE "id" = $3`

	res, err := r.db.ExecContext(ctx, q, string(constants.SummaryStatusSummarized), outputDir, fileID)
	if err != nil {
		r.log.Error("mark demand file summarized failed", "demand_file_id", fileID, "error", err)
		return fmt.Errorf("mark demand file %s summarized: %w", fileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("demand file %s: %w", fileID, common.ErrNotFound)
	}
	r.log.Info("demand file summarized", "demand_file_id", fileID, "output_dir", outputDir)
	return nil
}
