// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to manifest files.
//
// A Watcher monitors a directory tree with fsnotify, filters events through
// doublestar globs, coalesces bursts of events, and hands the changed paths
// to the module graph's event loop, so hot rebinding runs on the same
// goroutine as every other graph operation.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/livebind/livebind/pkg/eventloop"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// defaultIgnores are excluded whatever the configuration says: VCS metadata
// and editor scratch files.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// BaseDir is the root of the watched tree. Empty means the working directory.
		BaseDir string

		// Patterns select the files that count as changes, relative to
		// BaseDir. Empty selects every non-ignored file.
		Patterns []string

		// Ignore are extra patterns merged with the default ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before changes
		// are delivered. Zero or negative values use 100ms.
		Debounce time.Duration

		// Loop receives one task per delivered batch. Required.
		Loop *eventloop.Loop

		// OnChange runs on the loop with the sorted, deduplicated paths that
		// changed (relative to BaseDir). Its error is logged.
		OnChange func(changed []string) error

		// Logger receives warnings. Output is discarded when nil.
		Logger *log.Logger
	}

	// Watcher delivers debounced file changes to an event loop.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		debounce time.Duration
		baseDir  string
		logger   *log.Logger
		started  atomic.Bool

		mu      sync.Mutex
		pending map[string]struct{}
		queued  bool
	}
)

// New creates a Watcher and registers every non-ignored directory under
// BaseDir with fsnotify. Invalid globs are rejected here rather than
// silently never matching.
func New(cfg Config) (*Watcher, error) {
	if cfg.Loop == nil {
		return nil, errors.New("watch: no event loop configured")
	}
	for _, pat := range slices.Concat(cfg.Patterns, cfg.Ignore) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: debounce,
		baseDir:  absBase,
		logger:   logger,
		pending:  make(map[string]struct{}),
	}
	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close watcher after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// BaseDir returns the absolute root of the watched tree.
func (w *Watcher) BaseDir() string {
	return w.baseDir
}

// Run processes file events until ctx is done. It returns nil on
// cancellation and an error when fsnotify breaks down.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if !w.Matches(rel) {
				continue
			}

			w.mu.Lock()
			w.pending[filepath.ToSlash(rel)] = struct{}{}
			w.mu.Unlock()

			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.flush)
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalWatchError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// flush queues one delivery task on the loop. Events arriving before the
// task runs join its batch.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.queued || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	w.queued = true
	w.mu.Unlock()

	if err := w.cfg.Loop.Submit(w.deliver); err != nil {
		w.mu.Lock()
		w.queued = false
		w.mu.Unlock()
		w.logger.Warn("drop file changes", "err", err)
	}
}

// deliver runs on the loop goroutine.
func (w *Watcher) deliver() {
	w.mu.Lock()
	changed := slices.Sorted(maps.Keys(w.pending))
	clear(w.pending)
	w.queued = false
	w.mu.Unlock()

	if len(changed) == 0 || w.cfg.OnChange == nil {
		return
	}
	if err := w.cfg.OnChange(changed); err != nil {
		w.logger.Error("apply file changes", "err", err)
	}
}

// Matches reports whether a path relative to BaseDir is a change the
// watcher delivers.
func (w *Watcher) Matches(rel string) bool {
	normalized := filepath.ToSlash(rel)
	if matchAny(w.ignores, normalized) {
		return false
	}
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, normalized)
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skip inaccessible path", "path", path, "err", walkErr)
			return nil //nolint:nilerr // inaccessible directories are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if w.dirIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || w.dirIgnored(path) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new directory", "path", path, "err", err)
	}
}

func (w *Watcher) dirIgnored(path string) bool {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return matchAny(w.ignores, rel) || matchAny(w.ignores, rel+"/")
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, path); err == nil && ok {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
