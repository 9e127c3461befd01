// Package resultcache keeps the results of finished jobs so an identical
// request can be answered without contacting the server.
package resultcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

// MemoryCache holds encoded results in process memory.
type MemoryCache struct {
	codec     catalog.Codec
	namespace string
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMemory returns an empty in-memory cache. Entries are keyed within
// namespace, normally the server base URL.
func NewMemory(codec catalog.Codec, namespace string) *MemoryCache {
	return &MemoryCache{codec: codec, namespace: namespace, entries: make(map[Key][]byte)}
}

// Get returns the results stored for req or ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, req catalog.SubmitRequest) (catalog.JobResults, error) {
	key, err := KeyFor(c.codec, c.namespace, req)
	if err != nil {
		return catalog.JobResults{}, err
	}
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return catalog.JobResults{}, errspkg.ErrCacheMiss
	}
	return decodeResults(c.codec, data)
}

// Put stores results for req, replacing any earlier entry.
func (c *MemoryCache) Put(ctx context.Context, req catalog.SubmitRequest, results catalog.JobResults) error {
	key, err := KeyFor(c.codec, c.namespace, req)
	if err != nil {
		return err
	}
	data, err := c.codec.Marshal(&results)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DiskCache stores one compressed file per request under a directory,
// sharded by the first byte of the key.
type DiskCache struct {
	dir         string
	namespace   string
	codec       catalog.Codec
	compression Compression
	writeMu     sync.Mutex
}

// NewDisk creates dir when missing and returns a cache rooted there. Entries
// are keyed within namespace, normally the server base URL, so servers
// sharing a directory never answer for each other.
func NewDisk(dir, namespace string, codec catalog.Codec, compression Compression) (*DiskCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: cache directory is empty", errspkg.ErrConfigRequired)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &DiskCache{dir: dir, namespace: namespace, codec: codec, compression: compression}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) path(key Key) string {
	name := key.String()
	return filepath.Join(c.dir, name[:2], name+".bin")
}

// Get returns the results stored for req or ErrCacheMiss.
func (c *DiskCache) Get(ctx context.Context, req catalog.SubmitRequest) (catalog.JobResults, error) {
	key, err := KeyFor(c.codec, c.namespace, req)
	if err != nil {
		return catalog.JobResults{}, err
	}
	entry, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return catalog.JobResults{}, errspkg.ErrCacheMiss
	}
	if err != nil {
		return catalog.JobResults{}, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	data, err := decodeEntry(entry, c.codec.Options().MaxSize)
	if err != nil {
		return catalog.JobResults{}, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return decodeResults(c.codec, data)
}

// Put writes results for req with a temp file and rename, so readers never
// observe a partial entry.
func (c *DiskCache) Put(ctx context.Context, req catalog.SubmitRequest, results catalog.JobResults) error {
	key, err := KeyFor(c.codec, c.namespace, req)
	if err != nil {
		return err
	}
	data, err := c.codec.Marshal(&results)
	if err != nil {
		return err
	}
	entry, err := encodeEntry(c.compression, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	finalPath := c.path(key)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating cache shard directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(finalPath), "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(entry); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	success = true
	return nil
}

func decodeResults(codec catalog.Codec, data []byte) (catalog.JobResults, error) {
	var results catalog.JobResults
	if err := codec.Unmarshal(data, &results); err != nil {
		return catalog.JobResults{}, err
	}
	return results, nil
}
