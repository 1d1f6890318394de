// Package codecache keeps generated objects on disk, keyed by the optimized
// module text and the target, so identical compilations skip code generation.
package codecache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"jitc/internal/backend"
)

// bump when Entry changes shape
const schemaVersion uint16 = 1

// Digest is a cache key.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Key derives the cache key of module text compiled for t.
func Key(t backend.Target, text string) Digest {
	h := sha256.New()
	h.Write([]byte(t.Key()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Entry is the on-disk record.
type Entry struct {
	Schema  uint16
	Target  string
	Created int64
	Object  backend.Object
}

// Cache is a directory of msgpack encoded entries. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns the cache under $XDG_CACHE_HOME/<app> (or ~/.cache/<app>).
func Open(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir returns a cache rooted at dir, creating it if needed.
func OpenDir(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create code cache: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "objects", key.String()+".mp")
}

// Put stores obj under key. The file is replaced atomically.
func (c *Cache) Put(key Digest, t backend.Target, obj *backend.Object) error {
	if c == nil || obj == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	entry := Entry{Schema: schemaVersion, Target: t.Key(), Created: time.Now().Unix(), Object: *obj}
	if err := msgpack.NewEncoder(f).Encode(&entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get loads the object stored under key. Entries written by another schema
// version or for another target count as misses.
func (c *Cache) Get(key Digest, t backend.Target) (*backend.Object, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var entry Entry
	if err := msgpack.NewDecoder(f).Decode(&entry); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if entry.Schema != schemaVersion || entry.Target != t.Key() {
		return nil, false, nil
	}
	return &entry.Object, true, nil
}

// Len reports the number of stored entries.
func (c *Cache) Len() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	matches, err := filepath.Glob(filepath.Join(c.dir, "objects", "*.mp"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// DropAll removes every entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	objects := filepath.Join(c.dir, "objects")
	if err := os.RemoveAll(objects); err != nil {
		return err
	}
	return os.MkdirAll(objects, 0o755)
}
