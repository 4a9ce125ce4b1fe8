// Package inbox digitizes still images dropped into a watched directory.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/logger"

	"github.com/fsnotify/fsnotify"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
	// a file is picked up once it has not changed for this long
	defaultSettle = 500 * time.Millisecond
)

// HandleFunc digitizes one image file.
type HandleFunc func(ctx context.Context, path string) error

// Watcher feeds new images in the inbox directory to a HandleFunc, one at a
// time, and files them under processed/ or failed/ afterwards.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	settle  time.Duration
	logger  *logger.Logger
}

func NewWatcher(config *config.Config, logger *logger.Logger) (*Watcher, error) {
	dir := config.InboxDirectory
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{dir: dir, watcher: watcher, settle: defaultSettle, logger: logger}, nil
}

// IsImage reports whether path has an extension the digitizer accepts.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Run handles images already waiting in the inbox, then every new one,
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, handle HandleFunc) error {
	pending := make(map[string]time.Time)

	existing, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}
	for _, entry := range existing {
		if !entry.IsDir() && IsImage(entry.Name()) {
			pending[filepath.Join(w.dir, entry.Name())] = time.Time{}
		}
	}

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	w.logger.Info("Watching %s for calendar images", w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && IsImage(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Inbox watch error: %v", err)

		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.settle) {
				delete(pending, path)
				w.process(ctx, path, handle)
			}
		}
	}
}

// settled returns the pending paths untouched for at least settle, in name order.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, changed := range pending {
		if now.Sub(changed) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) process(ctx context.Context, path string, handle HandleFunc) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	target := ProcessedDir
	if err := handle(ctx, path); err != nil {
		w.logger.Error("Failed to digitize %s: %v", filepath.Base(path), err)
		target = FailedDir
	}

	dest := filepath.Join(w.dir, target, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Error("Failed to move %s to %s: %v", path, target, err)
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
