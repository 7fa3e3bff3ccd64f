package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/toyz/cortex/internal/utils"
)

const defaultDebounce = 300 * time.Millisecond

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Roots are the directories watched recursively.
	Roots []string

	// Output is the generated file name; its own writes never trigger a run.
	Output string

	// Excluded reports whether a directory relative to its root is skipped.
	Excluded func(rel string) bool

	// Debounce is the quiet period after the last event before OnChange runs.
	Debounce time.Duration

	// OnChange receives the changed source files once the debounce window closes.
	OnChange func(ctx context.Context, changed []string) error

	Stderr io.Writer
}

// Watcher regenerates code when Go sources change.
type Watcher struct {
	cfg      WatchConfig
	fsw      *fsnotify.Watcher
	debounce time.Duration
	stderr   io.Writer
	started  atomic.Bool
}

// NewWatcher registers every scannable directory under the roots.
func NewWatcher(cfg WatchConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if cfg.Excluded == nil {
		cfg.Excluded = func(string) bool { return false }
	}
	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		debounce: cfg.Debounce,
		stderr:   cfg.Stderr,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.stderr == nil {
		w.stderr = os.Stderr
	}

	for _, root := range cfg.Roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	list := w.fsw.WatchList()
	slices.Sort(list)
	return list
}

// Run processes events until ctx is cancelled. It may only be called once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(w.stderr, "watch: regeneration failed: %v\n", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						fmt.Fprintf(w.stderr, "%v\n", err)
					}
					continue
				}
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

// relevant reports whether a change to path can alter generated code.
func (w *Watcher) relevant(path string) bool {
	return utils.IsSourceFile(filepath.Base(path), w.cfg.Output)
}

func (w *Watcher) addTree(start string) error {
	root := w.rootOf(start)
	return filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fmt.Fprintf(w.stderr, "watch: skipping inaccessible path %q: %v\n", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && utils.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if rel, err := filepath.Rel(root, path); err == nil && w.cfg.Excluded(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
}

// rootOf returns the configured root containing path, or path itself.
func (w *Watcher) rootOf(path string) string {
	for _, root := range w.cfg.Roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel) {
			return root
		}
	}
	return path
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
