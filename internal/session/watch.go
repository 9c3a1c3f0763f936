package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotWatchable is returned by Watch when the storage has no file.
var ErrNotWatchable = errors.New("session storage cannot be watched")

// pathed is storage backed by a single file.
type pathed interface {
	Path() string
}

// Watch reloads the session whenever another process rewrites or removes
// the session file, notifying listeners if it changed. It blocks until ctx
// is done.
func (s *Store) Watch(ctx context.Context) error {
	p, ok := s.storage.(pathed)
	if !ok {
		return ErrNotWatchable
	}
	target := filepath.Clean(p.Path())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// The file is replaced by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug(ctx, "session file changed", zap.String("op", event.Op.String()))
			_ = s.Load()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn(ctx, "session watcher error", zap.Error(err))
		}
	}
}
