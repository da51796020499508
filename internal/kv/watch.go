// Watches the key directory for modifications made outside this process.

package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

var errWatchUnsupported = errors.New("watch requires the OS file system")

// Watch calls fn with the key name every time a key file is created, written,
// renamed into place or removed in the store directory, until ctx is done.
//
// Writes made through this Store are reported too; fsnotify does not tell
// them apart. Only stores backed by the OS file system can be watched.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return errWatchUnsupported
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if key, ok := keyFromPath(event.Name); ok {
					fn(key)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching key directory", "dir", s.dir, "err", err)
			}
		}
	}()
	return nil
}

// keyFromPath maps a file path to its key, ignoring temp files.
func keyFromPath(p string) (string, bool) {
	name := filepath.Base(p)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	return strings.TrimSuffix(name, fileSuffix), true
}
