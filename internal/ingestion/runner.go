package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swap-risk-lab/internal/normalization"
)

// FileError is a file that could not be ingested at all.
type FileError struct {
	Path string
	Err  error
}

// RunSummary aggregates the results of one Run.
type RunSummary struct {
	RunID  string
	Files  []*FileResult // input order, failed files omitted
	Errors []FileError
}

// Persisted returns the number of contracts written across all files.
func (s *RunSummary) Persisted() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Persisted)
	}
	return n
}

// Failed returns the number of contracts that could not be written.
func (s *RunSummary) Failed() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Failed)
	}
	return n
}

// Skipped returns the number of malformed rows across all files.
func (s *RunSummary) Skipped() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Skipped)
	}
	return n
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Pipeline *Pipeline
	Workers  int // Default: 1 - files are processed sequentially
	Logger   *zap.Logger
}

// Runner ingests batches of files with a bounded worker pool.
type Runner struct {
	pipeline *Pipeline
	workers  int
	logger   *zap.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		pipeline: opts.Pipeline,
		workers:  workers,
		logger:   logger,
	}
}

// Run expands paths and ingests every file. A file that cannot be read is
// recorded in the summary and does not stop the run.
func (r *Runner) Run(ctx context.Context, paths []string) (*RunSummary, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{RunID: uuid.NewString()}
	logger := r.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("ingestion started", zap.Int("files", len(files)), zap.Int("workers", r.workers))

	results := make([]*FileResult, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i], errs[i] = r.pipeline.ProcessFile(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	for i, path := range files {
		if results[i] != nil {
			summary.Files = append(summary.Files, results[i])
		}
		if errs[i] != nil {
			summary.Errors = append(summary.Errors, FileError{Path: path, Err: errs[i]})
			logger.Error("file failed", zap.String("path", path), zap.Error(errs[i]))
		}
	}

	logger.Info("ingestion finished",
		zap.Int("files", len(summary.Files)),
		zap.Int("persisted", summary.Persisted()),
		zap.Int("failed", summary.Failed()),
		zap.Int("skipped", summary.Skipped()),
		zap.Int("file_errors", len(summary.Errors)),
	)
	return summary, ctx.Err()
}

// ExpandPaths resolves files and directories into a sorted, de-duplicated
// list of supported files. Directories are walked recursively; explicitly
// named files are kept whatever their extension.
func ExpandPaths(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && normalization.IsSupported(path) {
				add(filepath.Clean(path))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	sort.Strings(out)
	return out, nil
}
