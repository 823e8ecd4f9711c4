package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ManifestFileName is the per-task run manifest written next to the page
// artifacts for downstream consumers.
const ManifestFileName = "manifest.json"

// RunManifest records what one extraction run produced.
type RunManifest struct {
	TaskID         string    `json:"task_id"`
	JobID          string    `json:"job_id"`
	DemandFileID   string    `json:"demand_file_id"`
	FileName       string    `json:"file_name"`
	PagesExtracted int       `json:"pages_extracted"`
	DegradedPages  []int     `json:"degraded_pages,omitempty"`
	Files          []string  `json:"files"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// manifestSchema guards the contract with downstream consumers: a manifest
// that fails validation is a bug here, not something to hand off.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["task_id", "job_id", "demand_file_id", "file_name", "pages_extracted", "files", "extracted_at"],
  "properties": {
    "task_id": {"type": "string", "minLength": 1},
    "job_id": {"type": "string", "minLength": 1},
    "demand_file_id": {"type": "string", "minLength": 1},
    "file_name": {"type": "string", "minLength": 1},
    "pages_extracted": {"type": "integer", "minimum": 0},
    "degraded_pages": {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "files": {"type": "array", "items": {"type": "string", "pattern": "^page_[0-9]{3}\\.txt$"}},
    "extracted_at": {"type": "string"}
  },
  "additionalProperties": false
}`

var compiledManifestSchema = jsonschema.MustCompileString("manifest.schema.json", manifestSchema)

// WriteManifest validates the manifest against its schema and writes it as
// indented JSON into the task output directory. Overwrites any prior run's
// manifest.
func (w *Writer) WriteManifest(m RunManifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode manifest for validation: %w", err)
	}
	if err := compiledManifestSchema.Validate(decoded); err != nil {
		return fmt.Errorf("manifest failed schema validation: %w", err)
	}

	path := filepath.Join(w.base, ManifestFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
