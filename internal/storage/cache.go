package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	appErr "gradebox/pkg/errors"
)

type cacheEntry struct {
	digest    string
	path      string
	sizeBytes int64
	expiresAt time.Time
}

// CachingStore fronts a FileStore with a local disk cache so repeated
// materializations of the same blob (test inputs, reference outputs) do not
// hit the backing store every time.
type CachingStore struct {
	backend    FileStore
	rootDir    string
	ttl        time.Duration
	maxEntries int
	maxBytes   int64

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	lruKeys   []string
	totalSize int64
}

// NewCachingStore creates a cache rooted at rootDir in front of backend.
func NewCachingStore(backend FileStore, rootDir string, ttl time.Duration, maxEntries int, maxBytes int64) (*CachingStore, error) {
	if backend == nil {
		return nil, appErr.New(appErr.CacheUnavailable).WithMessage("backend store is not initialized")
	}
	if rootDir == "" {
		return nil, appErr.New(appErr.CacheError).WithMessage("cache root is not configured")
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "create cache root failed")
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachingStore{
		backend:    backend,
		rootDir:    rootDir,
		ttl:        ttl,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		entries:    make(map[string]*cacheEntry),
	}, nil
}

func (c *CachingStore) GetFileToWriter(ctx context.Context, digest string, w io.Writer) error {
	if err := ValidateDigest(digest); err != nil {
		return err
	}
	path := filepath.Join(c.rootDir, filepath.FromSlash(objectKey(digest)))

	if !c.hitEntry(digest) {
		if err := c.fetchBlob(ctx, digest, path); err != nil {
			return err
		}
		c.addEntry(digest, path)
	}

	file, err := os.Open(path)
	if err != nil {
		// Cached file vanished under us; drop the entry and refetch once.
		c.removeEntry(digest)
		if err := c.fetchBlob(ctx, digest, path); err != nil {
			return err
		}
		c.addEntry(digest, path)
		if file, err = os.Open(path); err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "open cached blob failed")
		}
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "read cached blob failed")
	}
	return nil
}

// PutFileFromReader writes through to the backing store. The blob is not
// added to the cache here; it enters on first read.
func (c *CachingStore) PutFileFromReader(ctx context.Context, r io.Reader, description string) (string, error) {
	return c.backend.PutFileFromReader(ctx, r, description)
}

func (c *CachingStore) Describe(ctx context.Context, digest string) (string, error) {
	return c.backend.Describe(ctx, digest)
}

func (c *CachingStore) hitEntry(digest string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[digest]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntryLocked(digest)
		return false
	}
	if _, err := os.Stat(entry.path); err != nil {
		c.removeEntryLocked(digest)
		return false
	}
	entry.expiresAt = time.Now().Add(c.ttl)
	c.touchLocked(digest)
	return true
}

func (c *CachingStore) fetchBlob(ctx context.Context, digest, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create cache dir failed")
	}
	temp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create cache temp failed")
	}
	tempPath := temp.Name()
	defer func() {
		_ = os.Remove(tempPath)
	}()

	if err := c.backend.GetFileToWriter(ctx, digest, temp); err != nil {
		_ = temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "close cache temp failed")
	}

	actual, err := hashFile(tempPath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, digest) {
		return appErr.New(appErr.DigestMismatch).
			WithDetail("digest", digest).
			WithDetail("actual", actual)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "install cached blob failed")
	}
	return nil
}

func (c *CachingStore) addEntry(digest, path string) {
	size := fileSize(path)
	c.mu.Lock()
	if existing, ok := c.entries[digest]; ok {
		c.totalSize -= existing.sizeBytes
	}
	c.entries[digest] = &cacheEntry{
		digest:    digest,
		path:      path,
		sizeBytes: size,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.totalSize += size
	c.touchLocked(digest)
	c.evictLocked()
	c.mu.Unlock()
}

func (c *CachingStore) touchLocked(digest string) {
	for i, k := range c.lruKeys {
		if k == digest {
			c.lruKeys = append(c.lruKeys[:i], c.lruKeys[i+1:]...)
			break
		}
	}
	c.lruKeys = append(c.lruKeys, digest)
}

func (c *CachingStore) evictLocked() {
	for {
		if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
			c.removeOldestLocked()
			continue
		}
		if c.maxBytes > 0 && c.totalSize > c.maxBytes {
			c.removeOldestLocked()
			continue
		}
		break
	}
}

func (c *CachingStore) removeOldestLocked() {
	if len(c.lruKeys) == 0 {
		return
	}
	digest := c.lruKeys[0]
	c.lruKeys = c.lruKeys[1:]
	c.removeEntryLocked(digest)
}

func (c *CachingStore) removeEntry(digest string) {
	c.mu.Lock()
	c.removeEntryLocked(digest)
	c.mu.Unlock()
}

func (c *CachingStore) removeEntryLocked(digest string) {
	entry, ok := c.entries[digest]
	if !ok {
		return
	}
	delete(c.entries, digest)
	c.totalSize -= entry.sizeBytes
	for i, k := range c.lruKeys {
		if k == digest {
			c.lruKeys = append(c.lruKeys[:i], c.lruKeys[i+1:]...)
			break
		}
	}
	_ = os.Remove(entry.path)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
