// Package watch rebuilds documentation when files under the source tree change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/documentation-builder/internal/fsutil"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
)

// DefaultDebounce coalesces bursts of editor writes into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc runs one incremental build.
type RebuildFunc func(ctx context.Context) error

// Watcher watches a source tree recursively. Directories in Skip (usually
// the output tree) are never watched so that writing output does not
// trigger another rebuild.
type Watcher struct {
	Root     string
	Skip     []string
	Debounce time.Duration
	Rebuild  RebuildFunc
	Logger   *slog.Logger
}

// Run blocks until ctx is done. Rebuild errors are logged; the watcher keeps
// running so the next save can fix them.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Rebuild == nil {
		return fmt.Errorf("watch: rebuild function is required")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	skipped := skipSet(w.Root, w.Skip)
	if err := addDirsRecursive(fsw, w.Root, skipped, logger); err != nil {
		return err
	}
	logger.Info("Watching for changes", logfields.Path(w.Root))

	rebuildReq := make(chan struct{}, 1)
	trigger := debouncer(debounce, rebuildReq)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rebuildLoop(ctx, rebuildReq, w.Rebuild, logger)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ShouldIgnore(ev.Name) || underSkipped(ev.Name, skipped) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addDirsRecursive(fsw, ev.Name, skipped, logger)
				}
			}
			logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			trigger()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func debouncer(d time.Duration, out chan<- struct{}) func() {
	var mu sync.Mutex
	var timer *time.Timer
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() {
			select {
			case out <- struct{}{}:
			default:
			}
		})
	}
}

// rebuildLoop runs rebuilds one at a time. A request that arrives while a
// build is running is held in the buffered channel and runs afterwards.
func rebuildLoop(ctx context.Context, req <-chan struct{}, rebuild RebuildFunc, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-req:
			logger.Info("Change detected; rebuilding")
			if err := rebuild(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string, skipped map[string]bool, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if abs, absErr := filepath.Abs(p); absErr == nil && skipped[abs] {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			logger.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// skipSet resolves Skip to absolute paths. An entry naming the root itself
// (an in-place build) is dropped, otherwise nothing would be watched.
func skipSet(root string, skip []string) map[string]bool {
	out := make(map[string]bool, len(skip))
	for _, s := range skip {
		if s == "" || fsutil.SamePath(s, root) {
			continue
		}
		if abs, err := filepath.Abs(s); err == nil {
			out[abs] = true
		}
	}
	return out
}

func underSkipped(p string, skipped map[string]bool) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for dir := range skipped {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ShouldIgnore reports filesystem events that never warrant a rebuild:
// hidden files, editor swap and backup files and OS clutter.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}
