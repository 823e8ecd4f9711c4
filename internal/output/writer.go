// Package output persists per-page extraction artifacts into the layout
// downstream summarization consumers poll:
//
//	<task-output-dir>/raw_extract_by_page/page_NNN.txt
//	<task-output-dir>/chunks/            (created empty, filled downstream)
//	<task-output-dir>/manifest.json
package output

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// RawExtractDir holds one file per extracted page.
	RawExtractDir = "raw_extract_by_page"
	// ChunksDir is created for the chunking stage; this subsystem never
	// writes into it.
	ChunksDir = "chunks"
)

// Writer persists page artifacts under a task's output directory.
// All writes are UTF-8 and idempotent: a re-run overwrites prior content
// byte for byte given identical input.
type Writer struct {
	base string
}

// NewWriter returns a writer rooted at the task output directory. Call
// EnsureLayout before writing pages.
func NewWriter(base string) *Writer {
	return &Writer{base: base}
}

// Base returns the task output directory.
func (w *Writer) Base() string { return w.base }

// EnsureLayout creates the base directory and its subdirectories.
func (w *Writer) EnsureLayout() error {
	for _, dir := range []string{
		w.base,
		filepath.Join(w.base, RawExtractDir),
		filepath.Join(w.base, ChunksDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// PageFileName returns the fixed, sortable file name for a 1-based page
// number: page_001.txt, page_002.txt, ...
func PageFileName(pageNum int) string {
	return fmt.Sprintf("page_%03d.txt", pageNum)
}

// FormatPageText wraps a page's text in its boundary markers.
func FormatPageText(pageNum int, text string) string {
	return fmt.Sprintf("=== PAGE %d START ===\n%s\n=== PAGE %d END ===\n", pageNum, text, pageNum)
}

// WritePage writes one page's cleaned text, wrapped in boundary markers,
// into the raw extract directory.
func (w *Writer) WritePage(pageNum int, text string) (string, error) {
	name := PageFileName(pageNum)
	path := filepath.Join(w.base, RawExtractDir, name)
	if err := os.WriteFile(path, []byte(FormatPageText(pageNum, text)), 0o644); err != nil {
		return "", fmt.Errorf("write page %d: %w", pageNum, err)
	}
	return name, nil
}

// WritePages writes every page in order and returns the created file names.
func (w *Writer) WritePages(pages []string) ([]string, error) {
	files := make([]string, 0, len(pages))
	for i, text := range pages {
		name, err := w.WritePage(i+1, text)
		if err != nil {
			return files, err
		}
		files = append(files, name)
	}
	return files, nil
}
