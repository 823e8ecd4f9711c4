package entity

import (
	"time"

	"github.com/legasys-dev/demand-pipeline/constants"
)

// DemandFile represents an uploaded case document awaiting extraction.
// Read-only to the pipeline except for the terminal write that flips
// SummaryStatus to summarized together with the resolved output path.
type DemandFile struct {
	ID            string                  `json:"id"`
	DemandNoteID  string                  `json:"demand_note_id"`
	FileName      string                  `json:"file_name"`
	FilePath      string                  `json:"file_path"`
	SummaryStatus constants.SummaryStatus `json:"summary_status"`
	CreatedAt     time.Time               `json:"created_at"`
}
