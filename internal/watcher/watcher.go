// Package watcher observes the source directory for new audio files and
// triggers processing once writes have settled.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tonearm/tonearm/internal/scanner"
)

const defaultSettle = 2 * time.Second

// Service watches a directory tree for audio file arrivals. Events for a
// path are coalesced until no write has occurred for the settle period, so
// files still being copied in are not processed half-written.
type Service struct {
	dir     string
	handler func(ctx context.Context, path string)
	logger  *slog.Logger
	settle  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher that invokes handler for each settled audio file
// under dir.
func New(dir string, handler func(ctx context.Context, path string), logger *slog.Logger) *Service {
	return &Service{
		dir:     dir,
		handler: handler,
		logger:  logger.With(slog.String("component", "watcher")),
		settle:  defaultSettle,
		pending: make(map[string]*time.Timer),
	}
}

// SetSettle overrides the settle interval (for testing).
func (s *Service) SetSettle(d time.Duration) {
	s.settle = d
}

// Start blocks until ctx is canceled, dispatching settled files to the
// handler. Subdirectories created while watching are added to the watch.
func (s *Service) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(s.dir); err != nil {
		return err
	}
	s.logger.Info("watching for new files", slog.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher stopping")
			s.cancelPending()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, w, ev)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watch error", slog.String("error", err.Error()))
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.Add(ev.Name); err != nil {
				s.logger.Warn("adding subdirectory watch",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
		}
		return
	}

	if !scanner.IsAudioFile(ev.Name) {
		return
	}

	// Each event restarts the file's settle timer.
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.pending[ev.Name]; ok {
		timer.Stop()
	}
	path := ev.Name
	s.pending[path] = time.AfterFunc(s.settle, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("file settled", slog.String("path", path))
		s.handler(ctx, path)
	})
}

func (s *Service) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, timer := range s.pending {
		timer.Stop()
		delete(s.pending, path)
	}
}
