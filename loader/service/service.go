package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"docrag/loader"
)

const shutdownTimeout = 5 * time.Second

var ErrIndexFailed = errors.New("file could not be indexed")

// Indexer is the part of the pipeline the loader service feeds.
type Indexer interface {
	IndexPaths(ctx context.Context, paths []string) bool
	DeleteSource(ctx context.Context, source string) (int, error)
}

// Service indexes files dropped into the watched folder. A file that comes
// back with the same name replaces the chunks indexed from its previous copy.
type Service struct {
	logger  *slog.Logger
	rag     Indexer
	watcher *loader.Watcher

	mu      sync.Mutex
	indexed map[string]time.Time
}

func New(cfg loader.WatcherConfig, rag Indexer) (*Service, error) {
	s := &Service{
		logger:  slog.Default(),
		rag:     rag,
		indexed: make(map[string]time.Time),
	}
	w, err := loader.NewWatcher(cfg, s.IndexFile)
	if err != nil {
		return nil, err
	}
	s.watcher = w
	return s, nil
}

// Run watches until ctx is cancelled, then waits for the file in progress.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.watcher.Run(ctx)
	}()

	select {
	case err := <-errCh:
		// the watcher could not start
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-errCh:
		s.logger.Info("[LOADER] service stopped")
		return err
	case <-time.After(shutdownTimeout):
		s.logger.Warn("[LOADER] timeout waiting for goroutines to stop")
		return nil
	}
}

// IndexFile indexes path unless the same version was already indexed.
func (s *Service) IndexFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !s.shouldUpdate(path, info.ModTime()) {
		s.logger.Info("[LOADER] file unchanged, skipping", "path", path)
		return nil
	}

	s.mu.Lock()
	_, seen := s.indexed[path]
	s.mu.Unlock()
	if seen {
		n, err := s.rag.DeleteSource(ctx, path)
		if err != nil {
			return fmt.Errorf("remove previous chunks: %w", err)
		}
		s.logger.Info("[LOADER] removed previous chunks", "path", path, "count", n)
	}

	if !s.rag.IndexPaths(ctx, []string{path}) {
		return fmt.Errorf("%w: %s", ErrIndexFailed, path)
	}

	s.mu.Lock()
	s.indexed[path] = info.ModTime()
	s.mu.Unlock()
	s.logger.Info("[LOADER] file indexed", "path", path)
	return nil
}

func (s *Service) shouldUpdate(path string, modTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.indexed[path]
	if !ok {
		return true
	}
	return modTime.After(last)
}
