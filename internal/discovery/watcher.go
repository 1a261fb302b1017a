package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file events into one refresh.
const DefaultDebounce = 250 * time.Millisecond

// watchedExts are the file types whose changes trigger a refresh.
var watchedExts = map[string]bool{".yaml": true, ".yml": true, ".json": true, ".py": true}

// Watcher calls onChange after definition or source files change.
type Watcher struct {
	paths    []string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *common.Logger
}

// NewWatcher creates a watcher over paths. Directories are watched
// recursively; a file path watches its parent directory.
func NewWatcher(paths []string, debounce time.Duration, onChange func(ctx context.Context), logger *common.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{paths: paths, debounce: debounce, onChange: onChange, logger: logger}
}

// WatchPaths returns the directories a static configuration should be
// watched through.
func WatchPaths(opts Options) []string {
	var paths []string
	if opts.DefinitionsDir != "" {
		paths = append(paths, opts.DefinitionsDir)
	}
	if opts.ProcedureManifest != "" {
		paths = append(paths, opts.ProcedureManifest)
	}
	return append(paths, opts.SourceDirs...)
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, path := range w.paths {
		w.add(watcher, path)
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Str("error", err.Error()).Msg("definition watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// new subdirectories are not covered by the existing watches
				w.addDirs(watcher, event.Name)
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.logger.Debug().Msg("definitions changed, refreshing")
			w.onChange(ctx)
		}
	}
}

func (w *Watcher) add(watcher *fsnotify.Watcher, path string) {
	if filepath.Ext(path) != "" && !isDir(path) {
		path = filepath.Dir(path)
	}
	w.addDirs(watcher, path)
}

// addDirs watches root and every directory beneath it.
func (w *Watcher) addDirs(watcher *fsnotify.Watcher, root string) {
	if !isDir(root) {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && (skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			w.logger.Warn().Str("path", path).Str("error", err.Error()).Msg("definition watcher add failed")
		}
		return nil
	})
}

func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return watchedExts[strings.ToLower(filepath.Ext(event.Name))]
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
