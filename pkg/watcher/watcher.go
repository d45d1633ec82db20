// Package watcher re-triggers work-in-progress reviews when the
// checkout changes, with a settling delay so bursts of writes collapse
// into a single re-run.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pkgreview/pkgreview/pkg/logger"
)

// skipDirs are never watched; they churn constantly and cannot affect
// the package graph.
var skipDirs = map[string]bool{
	".git":    true,
	"result":  true,
	".direnv": true,
}

// Watcher watches a source tree and invokes a callback after changes
// settle.
type Watcher struct {
	root     string
	settling time.Duration
	logger   logger.Logger
	watcher  *fsnotify.Watcher
}

// New creates a watcher over root. settling is how long events must
// be quiet before the callback fires.
func New(root string, settling time.Duration, log logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{root: root, settling: settling, logger: log, watcher: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run blocks, invoking onSettled after each settled burst of changes,
// until the context is cancelled. New directories are picked up as
// they appear.
func (w *Watcher) Run(ctx context.Context, onSettled func()) error {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}
			if w.logger != nil {
				w.logger.Debug("Change detected", logger.WithField("file", event.Name))
			}
			if timer == nil {
				timer = time.NewTimer(w.settling)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.settling)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("File watcher error", logger.WithField("error", err))
			}

		case <-timerC:
			timer = nil
			timerC = nil
			onSettled()
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if skipDirs[info.Name()] {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}
