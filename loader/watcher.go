package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatcherConfig struct {
	SourceDir  string
	ArchiveDir string
	BadDir     string
	// MonitoringTime is how long a file must stay unchanged before it is
	// handed over.
	MonitoringTime time.Duration
	PollInterval   time.Duration
}

// FileHandler indexes one settled file. An error sends the file to the bad
// directory.
type FileHandler func(ctx context.Context, path string) error

type FileState int

const (
	FileArchived FileState = iota
	FileBad
)

// Watcher hands files dropped into SourceDir to a FileHandler once they
// have settled, then moves them to the archive or bad directory.
type Watcher struct {
	cfg    WatcherConfig
	handle FileHandler
	logger *slog.Logger

	mu         sync.Mutex
	lastChange map[string]time.Time
	processing map[string]bool
	now        func() time.Time
}

func NewWatcher(cfg WatcherConfig, handle FileHandler) (*Watcher, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	for _, dir := range []string{cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Watcher{
		cfg:        cfg,
		handle:     handle,
		logger:     slog.Default(),
		lastChange: make(map[string]time.Time),
		processing: make(map[string]bool),
		now:        time.Now,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.SourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.SourceDir, err)
	}
	w.logger.Info("[WATCHER] start monitoring folder", "dir", w.cfg.SourceDir)

	if err := w.scan(); err != nil {
		w.logger.Error("[WATCHER] error reading source directory", "error", err)
	}

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.process(ctx, fileChan)
	}()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer func() {
		ticker.Stop()
		close(fileChan)
		wg.Wait()
		w.logger.Info("[WATCHER] file watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.onEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("[WATCHER] watch error", "error", err)
		case <-ticker.C:
			for _, path := range w.ready() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || hidden(e.Name()) {
			continue
		}
		w.lastChange[filepath.Join(w.cfg.SourceDir, e.Name())] = w.now()
	}
	return nil
}

func (w *Watcher) onEvent(event fsnotify.Event) {
	if hidden(filepath.Base(event.Name)) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return
		}
		if _, seen := w.lastChange[event.Name]; !seen {
			w.logger.Info("[WATCHER] new file detected", "path", event.Name)
		}
		w.lastChange[event.Name] = w.now()
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !w.processing[event.Name] {
			delete(w.lastChange, event.Name)
		}
	}
}

// ready returns files unchanged for MonitoringTime and marks them as in
// progress.
func (w *Watcher) ready() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, changed := range w.lastChange {
		if w.processing[path] {
			continue
		}
		if w.now().Sub(changed) < w.cfg.MonitoringTime {
			continue
		}
		w.processing[path] = true
		out = append(out, path)
	}
	return out
}

func (w *Watcher) process(ctx context.Context, fileChan <-chan string) {
	for path := range fileChan {
		if ctx.Err() != nil {
			w.release(path)
			continue
		}
		w.logger.Info("[WATCHER] processing file", "path", path)

		state := FileArchived
		if err := w.handle(ctx, path); err != nil {
			w.logger.Error("[WATCHER] error processing file", "path", path, "error", err)
			state = FileBad
		}
		if ctx.Err() != nil {
			// leave the file in place so it is picked up on the next run
			w.release(path)
			continue
		}
		if _, err := w.MoveToArchive(path, state); err != nil {
			w.logger.Error("[WATCHER] error moving file", "path", path, "error", err)
		}

		w.mu.Lock()
		delete(w.processing, path)
		delete(w.lastChange, path)
		w.mu.Unlock()
	}
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.processing, path)
	w.mu.Unlock()
}

// MoveToArchive moves path into <dir>/<date>/, appending _1, _2, ... to the
// name when the destination already exists.
func (w *Watcher) MoveToArchive(path string, state FileState) (string, error) {
	root := w.cfg.ArchiveDir
	if state == FileBad {
		root = w.cfg.BadDir
	}
	destDir := filepath.Join(root, w.now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	dest := filepath.Join(destDir, stem+ext)
	for i := 1; exists(dest); i++ {
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}

	if err := os.Rename(path, dest); err != nil {
		// rename fails across devices
		if err := copyFile(path, dest); err != nil {
			return "", err
		}
		if err := os.Remove(path); err != nil {
			return "", err
		}
	}
	w.logger.Info("[WATCHER] file moved", "from", path, "to", dest)
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
