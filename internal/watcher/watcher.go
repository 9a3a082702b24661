// Package watcher feeds workspace file changes into the engine. Events are
// debounced into batches and classified into template vs source changes so
// the caller can route them: source changes re-run discovery, template
// changes invalidate single compilations.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"weft/internal/shared/observability"
)

// ChangeSet is one debounced batch of workspace changes.
type ChangeSet struct {
	Sources   []string
	Templates []string
}

func (c ChangeSet) Empty() bool {
	return len(c.Sources) == 0 && len(c.Templates) == 0
}

type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	sourceExts   map[string]bool
	templateExts map[string]bool
	onChange     func(ChangeSet)
	callbackMu   sync.Mutex

	pending   map[string]bool
	pendingMu sync.Mutex
	timer     *time.Timer
}

type Config struct {
	Debounce     time.Duration
	SourceExts   []string
	TemplateExts []string
	ExcludeDirs  []string
	ExcludeFiles []string
}

func New(cfg Config, onChange func(ChangeSet)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs := make([]glob.Glob, 0, len(cfg.ExcludeDirs))
	for _, pattern := range cfg.ExcludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	compiledFiles := make([]glob.Glob, 0, len(cfg.ExcludeFiles))
	for _, pattern := range cfg.ExcludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledFiles = append(compiledFiles, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:    fsw,
		debounce:     cfg.Debounce,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
		sourceExts:   extSet(cfg.SourceExts),
		templateExts: extSet(cfg.TemplateExts),
		onChange:     onChange,
		pending:      make(map[string]bool),
	}, nil
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		set[normalized] = true
	}
	return set
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	set := w.classify(paths)
	if set.Empty() {
		return
	}
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(set)
}

// classify splits a batch into source and template changes by extension.
func (w *Watcher) classify(paths []string) ChangeSet {
	var set ChangeSet
	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case w.templateExts[ext]:
			set.Templates = append(set.Templates, path)
		case w.sourceExts[ext]:
			set.Sources = append(set.Sources, path)
		}
	}
	return set
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) || g.Match(path) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))

	ext := filepath.Ext(base)
	if !w.sourceExts[ext] && !w.templateExts[ext] {
		return true
	}
	if strings.HasSuffix(base, ".d.ts") {
		return true
	}

	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
