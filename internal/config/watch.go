// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fbmirror/fbmirror/internal/log"
)

// Watcher reloads the config file when it changes on disk and hands the
// freshly resolved settings to the onChange callback. The callback decides
// what is applicable at runtime; geometry changes require a restart.
type Watcher struct {
	path     string
	loader   *Loader
	onChange func(Settings)
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, onChange func(Settings)) *Watcher {
	return &Watcher{
		path:     path,
		loader:   NewLoader(path),
		onChange: onChange,
	}
}

// Reload re-resolves settings immediately (used for SIGHUP).
func (w *Watcher) Reload() error {
	s, err := w.loader.Load()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	w.onChange(s)
	return nil
}

// Run watches the config file's directory until ctx is cancelled. Watching
// the directory instead of the file survives editors that replace the file
// on save. Rapid event bursts are coalesced with a short settle delay.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithComponent("config-watch")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(w.path)
	var settle *time.Timer
	settleCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case settleCh <- struct{}{}:
				default:
				}
			})
		case <-settleCh:
			if err := w.Reload(); err != nil {
				logger.Warn().
					Err(err).
					Str("event", "config.reload_failed").
					Str("path", w.path).
					Msg("config file changed but could not be reloaded")
				continue
			}
			logger.Info().
				Str("event", "config.reloaded").
				Str("path", w.path).
				Msg("config file reloaded")
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("event", "config.watch_error").Msg("config watcher error")
		}
	}
}
