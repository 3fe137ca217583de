package scanner

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is the delay after an fsnotify event before re-reading the
// table, so editors that write in multiple syscalls trigger one reload.
const debounceInterval = 200 * time.Millisecond

// Watch reloads the scanner's table whenever the file at path changes. It
// blocks until ctx is cancelled and is meant to run on its own goroutine.
func (s *Scanner) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files by rename, which drops a
	// watch on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(path)
	var debounce *time.Timer
	var debounceC <-chan time.Time

	reload := func() {
		table, err := LoadTableFile(target)
		if err != nil {
			slog.Warn("pattern table reload failed, keeping active table", "path", target, "error", err)
			return
		}
		s.Reload(table)
		slog.Info("pattern table reloaded", "path", target, "version", table.Version)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceInterval)
			} else {
				debounce.Reset(debounceInterval)
			}
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("pattern table watcher error", "error", err)
		}
	}
}
