package vfs

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches at most one file at a time. Watching a new file stops
// the previous watch.
type FileWatcher struct {
	mu      sync.Mutex
	current *fsnotify.Watcher
	cancel  context.CancelFunc
}

// Watch starts watching the file at abs and calls onWrite after every write.
// onWrite runs on the watcher goroutine. The parent directory is watched so
// that editors replacing the file by a rename keep being noticed.
func (w *FileWatcher) Watch(abs string, onWrite func()) error {
	abs = filepath.Clean(abs)
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		w.cancel = nil
		return err
	}
	w.current = watcher

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Printf("Failed to close watcher after add error: %v", closeErr)
		}
		cancel()
		w.current = nil
		w.cancel = nil
		return err
	}

	go watchFile(ctx, watcher, abs, onWrite)
	return nil
}

// Stop ends the current watch, if any.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *FileWatcher) stopLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.current != nil {
		w.current.Close()
		w.current = nil
	}
}

func watchFile(ctx context.Context, watcher *fsnotify.Watcher, abs string, onWrite func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			// A rename into place shows up as Create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("File modified: %s", abs)
				onWrite()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}
