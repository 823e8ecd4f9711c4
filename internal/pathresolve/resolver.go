// Package pathresolve locates uploaded files and places extraction outputs
// despite inconsistent path conventions: the web application records
// absolute Unix paths, deployments relocate storage roots via environment
// variables, and the worker may run from a different directory (or OS) than
// the uploader did.
package pathresolve

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/legasys-dev/demand-pipeline/constants"
	"github.com/legasys-dev/demand-pipeline/internal/common"
)

// maxAncestorLevels bounds how far up from the working directory Locate
// searches when retrying a stripped absolute path.
const maxAncestorLevels = 3

// DefaultOutputsRoot is the outputs root used when no environment override
// is configured, relative to the working directory.
const DefaultOutputsRoot = "outputs"

// Resolver maps logical path strings from the store onto the local
// filesystem. The zero value is usable; WorkDir defaults to the process
// working directory.
type Resolver struct {
	cfg     common.StorageConfig
	workDir string
	log     *slog.Logger
}

func NewResolver(cfg common.StorageConfig, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{cfg: cfg, log: log}
}

// WithWorkDir overrides the working directory used for relative candidates.
// Intended for tests.
func (r *Resolver) WithWorkDir(dir string) *Resolver {
	r.workDir = dir
	return r
}

func (r *Resolver) cwd() string {
	if r.workDir != "" {
		return r.workDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// ResolutionError reports an exhausted fallback chain. It keeps the full
// candidate list so an operator can diagnose the deployment without
// re-running under tracing.
type ResolutionError struct {
	Input     string
	WorkDir   string
	Attempted []string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "file not found, attempted %d paths:\n", len(e.Attempted))
	for i, p := range e.Attempted {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more paths\n", len(e.Attempted)-10)
			break
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	fmt.Fprintf(&b, "original path from store: %s\n", e.Input)
	fmt.Fprintf(&b, "working directory: %s\n", e.WorkDir)
	b.WriteString("tip: set UPLOADS_BASE_DIR to the directory containing the uploads tree")
	return b.String()
}

func (e *ResolutionError) Unwrap() error { return common.ErrPathResolution }

// Locate resolves a logical path to an existing file, trying an ordered
// fallback chain and returning the first candidate that exists:
//
//  1. the string as-is, relative to the current process;
//  2. the configured uploads root joined with the string (leading
//     separator stripped);
//  3. for strings with a leading separator (recorded on another OS or
//     deployment): the stripped remainder against the working directory,
//     then against up to three ancestors, then against the conventional
//     uploads siblings of those ancestors.
func (r *Resolver) Locate(logical string) (string, error) {
	if strings.TrimSpace(logical) == "" {
		return "", fmt.Errorf("empty path: %w", common.ErrPathResolution)
	}

	var attempted []string
	try := func(candidate string) bool {
		attempted = append(attempted, candidate)
		info, err := os.Stat(candidate)
		return err == nil && !info.IsDir()
	}

	// Strategy 1: as-is.
	if try(logical) {
		return logical, nil
	}

	stripped := strings.TrimLeft(logical, "/\\")

	// Strategy 2: environment-configured uploads root.
	if r.cfg.UploadsBaseDir != "" {
		if c := filepath.Join(r.cfg.UploadsBaseDir, filepath.FromSlash(stripped)); try(c) {
			return c, nil
		}
	}

	// Strategy 3: a leading separator marks a path recorded on a foreign
	// deployment; retry the remainder against the local tree.
	if strings.HasPrefix(logical, "/") || strings.HasPrefix(logical, "\\") {
		rel := filepath.FromSlash(stripped)
		cwd := r.cwd()

		if try(rel) {
			return rel, nil
		}
		if c := filepath.Join(cwd, rel); try(c) {
			return c, nil
		}

		base := cwd
		for level := 1; level <= maxAncestorLevels; level++ {
			base = filepath.Dir(base)
			if c := filepath.Join(base, rel); try(c) {
				return c, nil
			}
		}

		// Sibling conventions: uploads checked out next to the worker tree.
		base = cwd
		for level := 1; level <= maxAncestorLevels; level++ {
			base = filepath.Dir(base)
			if c := filepath.Join(base, "uploads", rel); try(c) {
				return c, nil
			}
		}
	}

	r.log.Warn("path resolution exhausted", "input", logical, "attempts", len(attempted))
	return "", &ResolutionError{Input: logical, WorkDir: r.cwd(), Attempted: attempted}
}

// OutputDir computes the directory extraction artifacts for one file belong
// in. It computes, it does not verify: callers create the directory. When
// the task already carries an output path it is honored (joined under the
// outputs root when one is configured); otherwise the layout is
// <outputs-root>/<job-id>/<sanitized-file-name>.
func (r *Resolver) OutputDir(jobID, fileName, knownOutput string) string {
	if knownOutput != "" {
		stripped := strings.TrimLeft(knownOutput, "/\\")
		if r.cfg.OutputsBaseDir != "" {
			return filepath.Join(r.cfg.OutputsBaseDir, filepath.FromSlash(stripped))
		}
		if filepath.IsAbs(knownOutput) {
			return filepath.Clean(knownOutput)
		}
		return filepath.Join(r.cwd(), filepath.FromSlash(stripped))
	}

	leaf := filepath.Join(DefaultOutputsRoot, jobID, constants.SanitizeFileName(fileName))
	if r.cfg.OutputsBaseDir != "" {
		return filepath.Join(r.cfg.OutputsBaseDir, leaf)
	}
	return filepath.Join(r.cwd(), leaf)
}
