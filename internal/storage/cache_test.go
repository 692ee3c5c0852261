package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	appErr "gradebox/pkg/errors"
)

// countingStore wraps a FileStore and counts backend reads.
type countingStore struct {
	FileStore
	mu   sync.Mutex
	gets map[string]int
}

func newCountingStore(backend FileStore) *countingStore {
	return &countingStore{FileStore: backend, gets: make(map[string]int)}
}

func (s *countingStore) GetFileToWriter(ctx context.Context, digest string, w io.Writer) error {
	s.mu.Lock()
	s.gets[digest]++
	s.mu.Unlock()
	return s.FileStore.GetFileToWriter(ctx, digest, w)
}

func (s *countingStore) getCount(digest string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[digest]
}

// corruptStore serves bytes that do not match the requested digest.
type corruptStore struct{}

func (corruptStore) GetFileToWriter(ctx context.Context, digest string, w io.Writer) error {
	_, err := w.Write([]byte("not the blob you asked for"))
	return err
}

func (corruptStore) PutFileFromReader(ctx context.Context, r io.Reader, description string) (string, error) {
	return "", appErr.New(appErr.StorageError)
}

func (corruptStore) Describe(ctx context.Context, digest string) (string, error) {
	return "", nil
}

func newTestCache(t *testing.T, backend FileStore, maxEntries int, maxBytes int64) *CachingStore {
	t.Helper()
	cache, err := NewCachingStore(backend, t.TempDir(), time.Minute, maxEntries, maxBytes)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return cache
}

func TestCachingStoreServesFromCache(t *testing.T) {
	backend, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	counting := newCountingStore(backend)
	cache := newTestCache(t, counting, 16, 0)
	ctx := context.Background()
	content := []byte("repeatedly fetched blob")

	digest, err := cache.PutFileFromReader(ctx, bytes.NewReader(content), "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	for i := 0; i < 3; i++ {
		var out bytes.Buffer
		if err := cache.GetFileToWriter(ctx, digest, &out); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if !bytes.Equal(out.Bytes(), content) {
			t.Fatalf("get %d returned %q", i, out.Bytes())
		}
	}
	if n := counting.getCount(digest); n != 1 {
		t.Fatalf("backend read %d times, want 1", n)
	}
}

func TestCachingStoreVerifiesDigest(t *testing.T) {
	cache := newTestCache(t, corruptStore{}, 16, 0)
	digest := digestOf([]byte("the real content"))

	err := cache.GetFileToWriter(context.Background(), digest, &bytes.Buffer{})
	if code := appErr.GetCode(err); code != appErr.DigestMismatch {
		t.Fatalf("err = %v, want code %d", err, appErr.DigestMismatch)
	}
}

func TestCachingStoreEvictsByEntryCount(t *testing.T) {
	backend, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	counting := newCountingStore(backend)
	cache := newTestCache(t, counting, 2, 0)
	ctx := context.Background()

	var digests []string
	for _, content := range []string{"blob one", "blob two", "blob three"} {
		digest, err := cache.PutFileFromReader(ctx, bytes.NewReader([]byte(content)), "")
		if err != nil {
			t.Fatalf("put %q: %v", content, err)
		}
		if err := cache.GetFileToWriter(ctx, digest, &bytes.Buffer{}); err != nil {
			t.Fatalf("get %q: %v", content, err)
		}
		digests = append(digests, digest)
	}

	// The first blob was evicted by the third; reading it again must hit
	// the backend a second time.
	if err := cache.GetFileToWriter(ctx, digests[0], &bytes.Buffer{}); err != nil {
		t.Fatalf("reread first blob: %v", err)
	}
	if n := counting.getCount(digests[0]); n != 2 {
		t.Fatalf("backend read %d times for evicted blob, want 2", n)
	}
	// The most recent blob is still cached.
	if err := cache.GetFileToWriter(ctx, digests[2], &bytes.Buffer{}); err != nil {
		t.Fatalf("reread third blob: %v", err)
	}
	if n := counting.getCount(digests[2]); n != 1 {
		t.Fatalf("backend read %d times for cached blob, want 1", n)
	}
}

func TestCachingStoreRejectsNilBackend(t *testing.T) {
	_, err := NewCachingStore(nil, t.TempDir(), time.Minute, 4, 0)
	if code := appErr.GetCode(err); code != appErr.CacheUnavailable {
		t.Fatalf("err = %v, want code %d", err, appErr.CacheUnavailable)
	}
}
