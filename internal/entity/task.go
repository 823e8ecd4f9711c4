package entity

import (
	"time"

	"github.com/legasys-dev/demand-pipeline/constants"
)

// Task represents the per-file unit of extraction work within a job.
// OutputFilePath is set if and only if the task completed; ErrorReason is
// set only on failure.
type Task struct {
	ID             string               `json:"id"`
	JobID          string               `json:"job_id"`
	DemandFileID   string               `json:"demand_file_id"`
	FileName       string               `json:"file_name"`
	FilePath       string               `json:"file_path"`
	OutputFilePath *string              `json:"output_file_path,omitempty"`
	Status         constants.TaskStatus `json:"status"`
	PID            *int                 `json:"pid,omitempty"`
	PageCount      *int                 `json:"page_count,omitempty"`
	ErrorReason    *string              `json:"error_reason,omitempty"`
	StartTs        *time.Time           `json:"start_ts,omitempty"`
	EndTs          *time.Time           `json:"end_ts,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}
