package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"swap-risk-lab/internal/idhash"
	"swap-risk-lab/internal/normalization"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Pipeline *Pipeline
	Dir      string
	Debounce time.Duration // Default: 500ms - quiet period after the last write
	OnResult func(*FileResult)
	Logger   *zap.Logger
}

// Watcher ingests files dropped into a directory. Files whose content was
// already ingested successfully are skipped.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	debounce time.Duration
	onResult func(*FileResult)
	logger   *zap.Logger

	seen map[string]struct{} // content fingerprints; owned by Run
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOptions) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		pipeline: opts.Pipeline,
		dir:      opts.Dir,
		debounce: debounce,
		onResult: opts.OnResult,
		logger:   logger.With(zap.String("dir", opts.Dir)),
		seen:     make(map[string]struct{}),
	}
}

// Run ingests the files already present, then every supported file created
// or written until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	existing, err := ExpandPaths([]string{w.dir})
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.handle(ctx, path)
	}
	w.logger.Info("watching for files", zap.Int("initial", len(existing)))

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !normalization.IsSupported(ev.Name) {
				continue
			}
			name := filepath.Clean(ev.Name)
			if t, ok := timers[name]; ok {
				t.Stop()
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case name := <-ready:
			delete(timers, name)
			w.handle(ctx, name)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	fingerprint, err := idhash.FileFingerprint(path)
	if err != nil {
		w.logger.Warn("fingerprint failed", zap.String("path", path), zap.Error(err))
		return
	}
	if _, ok := w.seen[fingerprint]; ok {
		w.logger.Debug("content already ingested", zap.String("path", path))
		return
	}

	res, err := w.pipeline.ProcessFile(ctx, path)
	if err != nil {
		w.logger.Error("file failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.seen[fingerprint] = struct{}{}
	if w.onResult != nil {
		w.onResult(res)
	}
}
