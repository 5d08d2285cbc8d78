package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/marquee/internal/logging"
)

// Watch re-reads the config file when it changes and reapplies the log
// level through the given LevelVar. Only the level is live-reloadable;
// everything else needs a restart. Blocks until ctx is canceled.
func Watch(ctx context.Context, path string, lvl *slog.LevelVar, logger *slog.Logger) {
	if path == "" {
		return
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn("watching config directory failed", "error", err)
		return
	}

	var debounce *time.Timer
	for {
		select {
		case ev := <-w.Events:
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				reapplyLevel(path, lvl, logger)
			})
		case err := <-w.Errors:
			logger.Warn("config watcher error", "error", err)
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

func reapplyLevel(path string, lvl *slog.LevelVar, logger *slog.Logger) {
	cfg, err := Load(path)
	if err != nil {
		logger.Warn("config reload failed", "error", err)
		return
	}
	newLevel := logging.ParseLevel(cfg.Logging.Level)
	if lvl.Level() != newLevel {
		lvl.Set(newLevel)
		logger.Info("log level changed", "level", cfg.Logging.Level)
	}
}
