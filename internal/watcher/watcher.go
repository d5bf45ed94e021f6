// Package watcher archives documents as they change on disk.
//
// A Watcher follows a directory tree with fsnotify. Every write to a file
// whose extension is listed in watch.extensions is debounced per file; when
// the file has been quiet for watch.debounce its content is handed to the
// archiver without forcing a flush, so bursts of edits collapse into the
// normal batch cadence. Nothing is archived while watch.auto_submit is off.
//
//	w, err := watcher.New(root, p, provider, logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	return w.Run(ctx)
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/extractor"
	"github.com/dshills/linkarchiver/pkg/types"
)

// Archiver consumes changed documents
type Archiver interface {
	ArchiveDocument(ctx context.Context, text string, format extractor.Format, force bool) (*types.Result, error)
}

// Watcher turns file modifications into archive requests
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	archiver Archiver
	config   config.Provider
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string

	closeOnce sync.Once
}

// New watches root and every non-hidden directory below it
func New(root string, archiver Archiver, provider config.Provider, logger *zap.Logger) (*Watcher, error) {
	if archiver == nil || provider == nil {
		return nil, errors.New("watcher: archiver and config provider are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		fsw:      fsw,
		archiver: archiver,
		config:   provider,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string, 64),
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and its non-hidden subdirectories
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("watching directory", zap.String("path", path))
		return nil
	})
}

// Run processes events until ctx is cancelled or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case path := <-w.ready:
			w.archive(ctx, path)
		}
	}
}

// Close stops watching. Run returns once its event channels close.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if isHidden(filepath.Base(event.Name)) {
				return
			}
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	cfg := w.config.Current()
	if cfg == nil || !cfg.Watch.AutoSubmit {
		return
	}
	if !cfg.WatchesExtension(filepath.Ext(event.Name)) {
		return
	}
	w.schedule(event.Name, debounce(cfg))
}

// schedule (re)starts the quiet-period timer for path
func (w *Watcher) schedule(path string, delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(path, delay)
}

func (w *Watcher) scheduleLocked(path string, delay time.Duration) {
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(delay)
		return
	}
	// Either no timer, or one that already fired and is waiting on mu; a
	// fresh timer replaces it and the stale callback sees it is not current
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		w.mu.Lock()
		if w.timers[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		default:
			w.logger.Warn("watch queue full, dropping change", zap.String("path", path))
		}
	})
	w.timers[path] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// archive reads path and hands it to the archiver without forcing a flush
func (w *Watcher) archive(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Removed or renamed since the event
		w.logger.Debug("skipping unreadable document", zap.String("path", path), zap.Error(err))
		return
	}

	format := extractor.FormatForExtension(filepath.Ext(path))
	res, err := w.archiver.ArchiveDocument(ctx, string(data), format, false)
	if err != nil {
		w.logger.Warn("failed to archive changed document", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("archived changed document",
		zap.String("path", path),
		zap.Int("accepted", res.Accepted),
		zap.Int("pending", res.Pending),
		zap.Bool("flushed", res.Flushed))
}

func debounce(cfg *config.Config) time.Duration {
	if cfg.Watch.Debounce <= 0 {
		return config.DefaultWatchDebounce
	}
	return cfg.Watch.Debounce
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
