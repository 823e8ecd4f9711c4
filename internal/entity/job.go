package entity

import (
	"time"

	"github.com/legasys-dev/demand-pipeline/constants"
)

// Job represents a summarization job for data transfer between layers.
// Rows live in the web application's "Job" table; this subsystem mutates
// only the status and its timestamp.
type Job struct {
	ID           string              `json:"id"`
	DemandNoteID string              `json:"demand_note_id"`
	Status       constants.JobStatus `json:"status"`
	Summary      *string             `json:"summary,omitempty"`
	UpdateTs     time.Time           `json:"update_ts"`
}
