package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/common"
	"github.com/legasys-dev/demand-pipeline/internal/extract"
	"github.com/legasys-dev/demand-pipeline/internal/output"
	"github.com/legasys-dev/demand-pipeline/internal/pathresolve"
	"github.com/legasys-dev/demand-pipeline/internal/repository"
)

const createTablesSQL = `
CREATE TABLE "Job" (
    "id"           TEXT PRIMARY KEY,
    "demandNoteId" TEXT NOT NULL,
    "status"       TEXT NOT NULL DEFAULT 'pending',
    "summary"      TEXT,
    "updateTs"     DATETIME NOT NULL
);
CREATE TABLE "DemandFile" (
    "id"            TEXT PRIMARY KEY,
    "demandNoteId"  TEXT NOT NULL,
    "fileName"      TEXT NOT NULL,
    "filePath"      TEXT NOT NULL,
    "summaryStatus" TEXT NOT NULL DEFAULT 'not_summarized',
    "createdAt"     DATETIME NOT NULL
);
CREATE TABLE "Task" (
    "id"             TEXT PRIMARY KEY,
    "jobId"          TEXT NOT NULL,
    "demandFileId"   TEXT NOT NULL,
    "fileName"       TEXT NOT NULL,
    "filePath"       TEXT NOT NULL,
    "outputFilePath" TEXT,
    "status"         TEXT NOT NULL DEFAULT 'pending',
    "pid"            INTEGER,
    "errorReason"    TEXT,
    "pageCount"      INTEGER,
    "startTs"        DATETIME,
    "endTs"          DATETIME,
    "createdAt"      DATETIME NOT NULL,
    "updatedAt"      DATETIME NOT NULL
);
`

// stubExtractor returns canned pages, or an error for inputs whose content
// matches failOn.
type stubExtractor struct {
	pages  []string
	failOn string
}

func (s *stubExtractor) ExtractPages(_ context.Context, data []byte) (extract.PageExtractionResult, error) {
	if s.failOn != "" && string(data) == s.failOn {
		return extract.PageExtractionResult{}, fmt.Errorf("stub: %w", common.ErrExtraction)
	}
	return extract.PageExtractionResult{Pages: s.pages}, nil
}

type fixture struct {
	db    *sql.DB
	jobs  repository.JobRepository
	tasks repository.TaskRepository
	files repository.DemandFileRepository
	wd    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tasks := repository.NewTaskRepository(db, nil)
	return &fixture{
		db:    db,
		jobs:  repository.NewJobRepository(db, tasks, nil),
		tasks: tasks,
		files: repository.NewDemandFileRepository(db, nil),
		wd:    t.TempDir(),
	}
}

func (f *fixture) seedJob(t *testing.T, jobID string, fileNames []string) {
	t.Helper()
	now := time.Now().UTC()
	noteID := jobID + "-note"
	if _, err := f.db.Exec(
		`INSERT INTO "Job" ("id", "demandNoteId", "status", "updateTs") VALUES ($1, $2, $3, $4)`,
		jobID, noteID, string(constants.JobStatusPending), now); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	for i, name := range fileNames {
		// Input PDFs live under <wd>/uploads but the store records the web
		// app's absolute Unix path, exercising the resolver's chain.
		onDisk := filepath.Join(f.wd, "uploads", name)
		if err := os.MkdirAll(filepath.Dir(onDisk), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(onDisk, []byte("pdf:"+name), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
		if _, err := f.db.Exec(
			`INSERT INTO "DemandFile" ("id", "demandNoteId", "fileName", "filePath", "summaryStatus", "createdAt")
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			fmt.Sprintf("%s-file-%d", jobID, i), noteID, name, "/uploads/"+name,
			string(constants.SummaryStatusNotSummarized), now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("seed demand file: %v", err)
		}
	}
}

func (f *fixture) orchestrator(ext extract.PageExtractor) *Orchestrator {
	resolver := pathresolve.NewResolver(common.StorageConfig{}, nil).WithWorkDir(f.wd)
	driver := NewDriver(resolver, ext, nil)
	return NewOrchestrator(f.jobs, f.tasks, f.files, driver, 99, nil)
}

func TestRunJobEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, "job-1", []string{"demand_letter.pdf"})

	pages := []string{
		"Plaintiff demands judgment for damages sustained.",
		"",
		"Medical expenses totaled 4 512 dollars.",
	}
	orch := f.orchestrator(&stubExtractor{pages: pages})

	if err := orch.Run(ctx, "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Exactly three page files, each wrapped in its markers.
	outDir := filepath.Join(f.wd, "outputs", "job-1", "demand_letter")
	entries, err := os.ReadDir(filepath.Join(outDir, output.RawExtractDir))
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("page files = %d, want 3", len(entries))
	}
	for i, e := range entries {
		want := fmt.Sprintf("page_%03d.txt", i+1)
		if e.Name() != want {
			t.Errorf("entry %d = %s, want %s", i, e.Name(), want)
		}
	}

	// Ledger: task completed with output path, job completed, file summarized.
	tasks, _ := f.tasks.ListForJob(ctx, "job-1")
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}
	task := tasks[0]
	if task.Status != constants.TaskStatusCompleted {
		t.Errorf("task status = %s, want completed", task.Status)
	}
	if task.OutputFilePath == nil || *task.OutputFilePath != outDir {
		t.Errorf("task output path = %v, want %s", task.OutputFilePath, outDir)
	}
	if task.PageCount == nil || *task.PageCount != 3 {
		t.Errorf("page count = %v, want 3", task.PageCount)
	}

	job, _ := f.jobs.GetByID(ctx, "job-1")
	if job.Status != constants.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}

	file, _ := f.files.GetByID(ctx, "job-1-file-0")
	if file.SummaryStatus != constants.SummaryStatusSummarized {
		t.Errorf("file status = %s, want summarized", file.SummaryStatus)
	}
	if file.FilePath != outDir {
		t.Errorf("file path = %s, want %s", file.FilePath, outDir)
	}
}

func TestRunJobTaskFailureDoesNotAbortLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, "job-1", []string{"bad.pdf", "good.pdf"})

	// The stub fails only for bad.pdf's bytes.
	orch := f.orchestrator(&stubExtractor{pages: []string{"fine"}, failOn: "pdf:bad.pdf"})

	if err := orch.Run(ctx, "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tasks, _ := f.tasks.ListForJob(ctx, "job-1")
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	byName := map[string]constants.TaskStatus{}
	for _, task := range tasks {
		byName[task.FileName] = task.Status
	}
	if byName["bad.pdf"] != constants.TaskStatusFailed {
		t.Errorf("bad.pdf status = %s, want failed", byName["bad.pdf"])
	}
	if byName["good.pdf"] != constants.TaskStatusCompleted {
		t.Errorf("good.pdf status = %s, want completed", byName["good.pdf"])
	}

	for _, task := range tasks {
		if task.FileName == "bad.pdf" {
			if task.ErrorReason == nil || *task.ErrorReason == "" {
				t.Errorf("failed task has no recorded reason")
			}
			if task.OutputFilePath != nil {
				t.Errorf("failed task must not have an output path")
			}
		}
	}

	job, _ := f.jobs.GetByID(ctx, "job-1")
	if job.Status != constants.JobStatusFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
}

func TestRunJobNoTasksFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, "job-1", nil)

	orch := f.orchestrator(&stubExtractor{pages: []string{"x"}})
	if err := orch.Run(ctx, "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := f.jobs.GetByID(ctx, "job-1")
	if job.Status != constants.JobStatusFailed {
		t.Fatalf("job status = %s, want failed (never completed)", job.Status)
	}
	if job.Summary == nil || *job.Summary == "" {
		t.Errorf("zero-task failure must carry an explanatory reason")
	}
}

func TestRunJobMissingJobIsSwallowed(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(&stubExtractor{pages: []string{"x"}})

	if err := orch.Run(context.Background(), "no-such-job"); err != nil {
		t.Fatalf("missing job must not error the process, got: %v", err)
	}
}

func TestRunJobRerunSkipsTerminalTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, "job-1", []string{"one.pdf"})

	orch := f.orchestrator(&stubExtractor{pages: []string{"alpha"}})
	if err := orch.Run(ctx, "job-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	tasksBefore, _ := f.tasks.ListForJob(ctx, "job-1")

	if err := orch.Run(ctx, "job-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	tasksAfter, _ := f.tasks.ListForJob(ctx, "job-1")

	if len(tasksAfter) != len(tasksBefore) {
		t.Fatalf("re-run duplicated tasks: %d -> %d", len(tasksBefore), len(tasksAfter))
	}
	if tasksAfter[0].ID != tasksBefore[0].ID {
		t.Errorf("re-run replaced the task")
	}
	if !tasksAfter[0].UpdatedAt.Equal(tasksBefore[0].UpdatedAt) {
		t.Errorf("terminal task was revisited on re-run")
	}
}
