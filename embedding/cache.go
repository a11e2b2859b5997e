// Package embedding computes document vectors and keeps them in a disk cache.
package embedding

import (
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Cache maps document ids to vectors and rewrites its backing file after
// every change.
type Cache struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewCache loads path if it exists. An unreadable file is logged and the
// cache starts empty.
func NewCache(path string) *Cache {
	c := &Cache{
		path:    path,
		logger:  slog.Default(),
		vectors: make(map[string][]float32),
	}
	if err := c.load(); err != nil {
		c.logger.Error("[CACHE] error loading embedding cache", "path", path, "error", err)
		c.vectors = make(map[string][]float32)
	}
	return c
}

func (c *Cache) load() error {
	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&c.vectors); err != nil {
		return fmt.Errorf("decode cache: %w", err)
	}
	c.logger.Info("[CACHE] loaded embedding cache", "path", c.path, "entries", len(c.vectors))
	return nil
}

// save writes to a temp file and renames it over the cache file. Caller holds mu.
func (c *Cache) save() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".cache-*")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(c.vectors); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

func (c *Cache) Get(id string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[id]
	return v, ok
}

func (c *Cache) Contains(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Add stores vec under id and persists the whole cache.
func (c *Cache) Add(id string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[id] = vec
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// Remove deletes id. Missing ids are ignored.
func (c *Cache) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vectors[id]; !ok {
		return nil
	}
	delete(c.vectors, id)
	return c.save()
}

func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors = make(map[string][]float32)
	return c.save()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// MemoryUsage estimates the in-memory size of ids and vectors in megabytes.
func (c *Cache) MemoryUsage() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int
	for id, v := range c.vectors {
		total += len(id) + 4*len(v)
	}
	return float64(total) / (1024 * 1024)
}
