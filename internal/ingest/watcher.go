// Package ingest watches an inbox directory for report files and mines each
// new file into a session.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"finreports/internal/loader"
	"finreports/internal/pipeline"
)

type WatchConfig struct {
	Roots       []string      // watched recursively
	InitialScan bool          // emit files already present
	Debounce    time.Duration // coalesce create/write bursts
	Logger      *slog.Logger
}

// Watch emits the paths of loadable files created or rewritten under
// the roots until ctx is done.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	var existing []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && loader.Supported(path) {
				existing = append(existing, path)
			}
			return nil
		})
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer w.Close()

		// Existing files go out before any change event; fsnotify buffers
		// events while the consumer catches up.
		for _, p := range existing {
			select {
			case evCh <- p:
			case <-ctx.Done():
				return
			}
		}

		pending := map[string]struct{}{}
		var flush <-chan time.Time

		send := func() {
			for p := range pending {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("watch new directory failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !loader.Supported(e.Name) || !(e.Op.Has(fsnotify.Create) || e.Op.Has(fsnotify.Write) || e.Op.Has(fsnotify.Rename)) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce > 0 {
					flush = time.After(cfg.Debounce)
				} else {
					send()
				}
			case <-flush:
				flush = nil
				send()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Inbox mines files dropped into a directory into one session.
type Inbox struct {
	processing *pipeline.ProcessingService
	sessionID  string
	logger     *slog.Logger
	seen       map[string]time.Time
}

func NewInbox(processing *pipeline.ProcessingService, sessionID string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{processing: processing, sessionID: sessionID, logger: logger, seen: map[string]time.Time{}}
}

// Run consumes watcher events until ctx is done or the watcher stops.
func (in *Inbox) Run(ctx context.Context, cfg WatchConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = in.logger
	}
	events, errs, err := Watch(ctx, cfg)
	if err != nil {
		return err
	}
	in.logger.Info("inbox watching", "roots", cfg.Roots, "session", in.sessionID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if err := in.Handle(path); err != nil {
				return err
			}
		case err, ok := <-errs:
			if ok {
				in.logger.Warn("inbox watcher error", "error", err)
			}
		}
	}
}

// Handle mines one file unless the same version was already mined. Only
// storage failures are returned; unreadable files become failed results.
func (in *Inbox) Handle(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		in.logger.Debug("inbox file vanished", "path", path)
		return nil
	}
	if last, ok := in.seen[path]; ok && last.Equal(info.ModTime()) {
		return nil
	}
	in.seen[path] = info.ModTime()

	doc := pipeline.Document{Path: path, SourceName: filepath.Base(path)}
	_, err = in.processing.ProcessFiles(in.sessionID, []pipeline.Document{doc}, false)
	return err
}
