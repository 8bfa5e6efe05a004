package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clauselens/clauselens/constants"
)

// WatchConfig configures the recursive directory watcher.
type WatchConfig struct {
	Roots       []string
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	InitialScan bool                // walk roots on start and emit existing files
	Debounce    time.Duration       // coalesce rapid write/rename bursts per path
}

// StartWatcher watches the roots recursively and emits paths of files worth
// ingesting. The channels close when ctx is cancelled.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no watch roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	emit := func(path string) {
		select {
		case evCh <- path:
		default:
			logger.Warn("watch.event_dropped", "path", path)
		}
	}

	addTree := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if IsHidden(path) && path != root {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path, cfg.AllowedExts) {
				emit(path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addTree(r); err != nil {
			_ = w.Close()
			return nil, nil, fmt.Errorf("watch %s: %w", r, err)
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		// flush runs from the debounce timer goroutine as well
		var mu sync.Mutex
		pending := map[string]struct{}{}
		flush := func() {
			mu.Lock()
			defer mu.Unlock()
			for p := range pending {
				emit(p)
				delete(pending, p)
			}
		}
		var timer *time.Timer

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := addTree(e.Name); err != nil {
							logger.Warn("watch.add_dir_failed", "path", e.Name, "err", err)
						}
						continue
					}
				}
				if !allowed(e.Name, cfg.AllowedExts) || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				pending[e.Name] = struct{}{}
				mu.Unlock()
				if cfg.Debounce <= 0 {
					flush()
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, flush)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watch.error", "err", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	logger.Info("watch.started", "roots", cfg.Roots, "initial_scan", cfg.InitialScan, "debounce", cfg.Debounce)
	return evCh, errCh, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
