// Package doccache is the on-disk checkpoint of Phase 1 (fetch & embed): for
// every authoritative document already embedded, it records the document,
// its embedding, and when it was processed, so Phase 1 can be killed and
// restarted without re-embedding anything.
package doccache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/researchgraph/hybridsearch/internal/docstore"
	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

const (
	entriesFile  = "embeddings.blob"
	metadataFile = "metadata.blob"
	version      = 1
)

func init() {
	// docstore.Author.AuthorPosition is untyped (upstream records disagree on
	// number vs numeric string); gob needs every concrete type it might hold
	// registered up front to encode/decode through the interface.
	gob.Register(int(0))
	gob.Register(int32(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
}

// Entry is one checkpointed document: the fetched authoritative record, its
// computed embedding, and when it was processed.
type Entry struct {
	Document    docstore.Document
	Embedding   []float32
	ProcessedAt time.Time
}

// Metadata describes the cache as a whole.
type Metadata struct {
	Version      int
	CreatedAt    time.Time
	LastModified time.Time
	TotalTargeted int
	ReindexAll   bool
}

// Stats summarizes the cache's current contents.
type Stats struct {
	EntryCount   int
	CreatedAt    time.Time
	LastModified time.Time
	TotalTargeted int
	ReindexAll   bool
}

// Cache is the process-local, file-backed checkpoint store. Zero value is
// not usable; construct with New.
type Cache struct {
	dir string

	mu       sync.RWMutex
	entries  map[string]Entry
	meta     Metadata
	lastSave time.Time
}

// New constructs an empty Cache rooted at dir. Call Load to populate it from
// disk, or Exists to check first.
func New(dir string) *Cache {
	return &Cache{
		dir:     dir,
		entries: make(map[string]Entry),
		meta:    Metadata{Version: version, CreatedAt: time.Now(), TotalTargeted: 0},
	}
}

func (c *Cache) entriesPath() string  { return filepath.Join(c.dir, entriesFile) }
func (c *Cache) metadataPath() string { return filepath.Join(c.dir, metadataFile) }

// Exists reports whether a checkpoint is present on disk.
func (c *Cache) Exists() bool {
	_, err := os.Stat(c.entriesPath())
	return err == nil
}

// Load reads the checkpoint from disk. A missing or corrupt (half-written)
// file is not an error: the cache starts fresh and the caller is expected to
// log the returned warning message.
func (c *Cache) Load() (warning string, err error) {
	entriesRaw, err := os.ReadFile(c.entriesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "no existing checkpoint found, starting fresh: " + err.Error(), nil
	}

	var entries map[string]Entry
	if err := gob.NewDecoder(bytes.NewReader(entriesRaw)).Decode(&entries); err != nil {
		return "checkpoint file is corrupt or incomplete, starting fresh: " + err.Error(), nil
	}

	var meta Metadata
	metaRaw, err := os.ReadFile(c.metadataPath())
	if err == nil {
		if decodeErr := gob.NewDecoder(bytes.NewReader(metaRaw)).Decode(&meta); decodeErr != nil {
			return "checkpoint metadata is corrupt, starting fresh: " + decodeErr.Error(), nil
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.meta = meta
	c.mu.Unlock()
	return "", nil
}

// Save persists entries and metadata atomically (write-then-rename). It is
// not cancellable: a save in progress always runs to completion.
func (c *Cache) Save() error {
	c.mu.Lock()
	entries := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		entries[k] = v
	}
	c.meta.LastModified = time.Now()
	meta := c.meta
	c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return apperrors.New(apperrors.ErrCodeDocumentCacheIO, "create cache directory", err)
	}

	var entriesBuf bytes.Buffer
	if err := gob.NewEncoder(&entriesBuf).Encode(entries); err != nil {
		return apperrors.New(apperrors.ErrCodeDocumentCacheIO, "encode cache entries", err)
	}
	if err := writeAtomic(c.entriesPath(), entriesBuf.Bytes()); err != nil {
		return apperrors.New(apperrors.ErrCodeDocumentCacheIO, "write cache entries", err)
	}

	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return apperrors.New(apperrors.ErrCodeDocumentCacheIO, "encode cache metadata", err)
	}
	if err := writeAtomic(c.metadataPath(), metaBuf.Bytes()); err != nil {
		return apperrors.New(apperrors.ErrCodeDocumentCacheIO, "write cache metadata", err)
	}

	c.mu.Lock()
	c.lastSave = time.Now()
	c.mu.Unlock()
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// AddEntry appends a single entry. IsProcessed is guaranteed true for its id
// before AddEntry returns.
func (c *Cache) AddEntry(id string, e Entry) {
	c.AddEntries(map[string]Entry{id: e})
}

// AddEntries appends entries under the writer mutex. IsProcessed is
// guaranteed true for every id in entries before AddEntries returns.
func (c *Cache) AddEntries(entries map[string]Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range entries {
		c.entries[id] = e
	}
}

// IsProcessed reports whether id already has a cache entry.
func (c *Cache) IsProcessed(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// GetEntries returns a defensive copy of all cached entries.
func (c *Cache) GetEntries() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Clear drops all entries and resets metadata, in memory only; callers that
// want the change durable must call Save (or remove the files directly, as
// the indexer's clean command does).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.meta = Metadata{Version: version, CreatedAt: time.Now()}
}

// SetTarget records how many documents Phase 1 is targeting this run, and
// whether it is running in reindex-all mode.
func (c *Cache) SetTarget(total int, reindexAll bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.TotalTargeted = total
	c.meta.ReindexAll = reindexAll
}

// ShouldAutosave reports whether at least d has elapsed since the last save.
func (c *Cache) ShouldAutosave(d time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastSave) >= d
}

// Stats summarizes the cache's current contents.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		EntryCount:    len(c.entries),
		CreatedAt:     c.meta.CreatedAt,
		LastModified:  c.meta.LastModified,
		TotalTargeted: c.meta.TotalTargeted,
		ReindexAll:    c.meta.ReindexAll,
	}
}

// RemoveDir deletes the cache directory wholesale; used by the indexer's
// clean command.
func RemoveDir(dir string) error {
	return os.RemoveAll(dir)
}
