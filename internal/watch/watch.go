// pattern: Imperative Shell

// Package watch runs a callback after edits under a directory tree settle.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"labkit/internal/logging"
)

// DefaultSkipDirs are directory names that never trigger a sync.
var DefaultSkipDirs = []string{".git", "skeleton", "cmake-build-debug", ".idea"}

// DefaultSkipPatterns match build products the lab .gitignore excludes.
var DefaultSkipPatterns = []string{"*.o", "*.exe", "*.mbox", "*~", ".*.swp"}

// Config controls a Watcher.
type Config struct {
	Root         string
	Debounce     time.Duration
	SkipDirs     []string // defaults to DefaultSkipDirs
	SkipPatterns []string // defaults to DefaultSkipPatterns
	OnChange     func(ctx context.Context) error
	Logger       *logging.ScopedLogger
}

// Watcher debounces filesystem events under Root and calls OnChange once per
// burst. Callbacks never overlap.
type Watcher struct {
	cfg      Config
	skipDirs map[string]bool
	fsw      *fsnotify.Watcher

	mu       sync.Mutex
	triggers int
	failures int
}

// New validates cfg and opens an fsnotify watcher. Call Run to start it.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: root is required")
	}
	if cfg.OnChange == nil {
		return nil, errors.New("watch: OnChange is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.SkipDirs == nil {
		cfg.SkipDirs = DefaultSkipDirs
	}
	if cfg.SkipPatterns == nil {
		cfg.SkipPatterns = DefaultSkipPatterns
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", cfg.Root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	skip := make(map[string]bool, len(cfg.SkipDirs))
	for _, d := range cfg.SkipDirs {
		skip[d] = true
	}
	return &Watcher{cfg: cfg, skipDirs: skip, fsw: fsw}, nil
}

// Triggers reports how many times OnChange has run.
func (w *Watcher) Triggers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.triggers
}

// Failures reports how many OnChange calls returned an error.
func (w *Watcher) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// Run blocks until ctx is cancelled. OnChange errors are logged and the
// watcher keeps going; the next burst retries.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if err := w.addTree(w.cfg.Root); err != nil {
		return err
	}
	w.cfg.Logger.Info("watching", "root", w.cfg.Root, "debounce", w.cfg.Debounce)

	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info("stopped watching", "root", w.cfg.Root)
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.cfg.Logger.Debug("change", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.cfg.Logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.fire(ctx)
		}
	}
}

func (w *Watcher) fire(ctx context.Context) {
	err := w.cfg.OnChange(ctx)

	w.mu.Lock()
	w.triggers++
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.cfg.Logger.Error("sync failed", "error", err)
		return
	}
	w.cfg.Logger.Info("synced")
}

// addTree watches dir and every subdirectory not skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.cfg.Root && w.skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant filters out chmod-only events and paths under skipped
// directories or matching a skip pattern.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Root, event.Name)
	if err != nil {
		return false
	}
	for dir := filepath.Dir(rel); dir != "." && dir != "/"; dir = filepath.Dir(dir) {
		if w.skipDirs[filepath.Base(dir)] {
			return false
		}
	}
	base := filepath.Base(event.Name)
	if w.skipDirs[base] {
		return false
	}
	for _, pattern := range w.cfg.SkipPatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}
	return true
}
