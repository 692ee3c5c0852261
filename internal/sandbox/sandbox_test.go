package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gradebox/internal/storage"
	appErr "gradebox/pkg/errors"
)

// memStore is an in-memory FileStore for exercising the file transfer paths.
type memStore struct {
	blobs map[string][]byte
	descs map[string]string
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte), descs: make(map[string]string)}
}

func (m *memStore) GetFileToWriter(ctx context.Context, digest string, w io.Writer) error {
	data, ok := m.blobs[digest]
	if !ok {
		return appErr.Newf(appErr.BlobNotFound, "no blob %s", digest)
	}
	_, err := w.Write(data)
	return err
}

func (m *memStore) PutFileFromReader(ctx context.Context, r io.Reader, description string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	hasher := storage.NewDigester()
	hasher.Write(data)
	digest := storage.DigestString(hasher)
	m.blobs[digest] = data
	m.descs[digest] = description
	return digest, nil
}

func (m *memStore) Describe(ctx context.Context, digest string) (string, error) {
	desc, ok := m.descs[digest]
	if !ok {
		return "", appErr.Newf(appErr.BlobNotFound, "no blob %s", digest)
	}
	return desc, nil
}

func newTestBase(t *testing.T) (*Base, *memStore) {
	t.Helper()
	store := newMemStore()
	base := NewBase(store, "test", t.TempDir())
	base.setRoot(t.TempDir())
	return &base, store
}

func TestNewBaseDefaults(t *testing.T) {
	base := NewBase(nil, "", "/tmp")
	if base.Name != "unnamed" {
		t.Fatalf("default name = %q, want %q", base.Name, "unnamed")
	}
	if base.MaxProcesses != 1 {
		t.Fatalf("default max processes = %d, want 1", base.MaxProcesses)
	}
	if base.SetEnv["HOME"] != "./" {
		t.Fatalf("HOME = %q, want %q", base.SetEnv["HOME"], "./")
	}
}

func TestRelativePathRejectsEscape(t *testing.T) {
	base, _ := newTestBase(t)
	cases := []string{"../outside", "../../etc/passwd", "a/../../../x"}
	for _, path := range cases {
		t.Run(path, func(t *testing.T) {
			_, err := base.RelativePath(path)
			if code := appErr.GetCode(err); code != appErr.PathEscape {
				t.Fatalf("RelativePath(%q) err = %v, want code %d", path, err, appErr.PathEscape)
			}
		})
	}

	real, err := base.RelativePath("sub/file.txt")
	if err != nil {
		t.Fatalf("RelativePath: %v", err)
	}
	if !strings.HasPrefix(real, base.RootPath()) {
		t.Fatalf("resolved path %q is not under root %q", real, base.RootPath())
	}
}

func TestCreateFileExclusive(t *testing.T) {
	base, _ := newTestBase(t)
	if err := base.CreateFileFromBytes("out.txt", []byte("original"), false); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := base.CreateFile("out.txt", false)
	if code := appErr.GetCode(err); code != appErr.FileExists {
		t.Fatalf("second create err = %v, want code %d", err, appErr.FileExists)
	}

	// A refused creation must not touch the existing content.
	data, err := base.GetFileToString("out.txt", NoTrunc)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("content = %q after refused create, want %q", data, "original")
	}
}

func TestCreateFilePermissions(t *testing.T) {
	base, _ := newTestBase(t)
	if err := base.CreateFileFromBytes("plain", nil, false); err != nil {
		t.Fatalf("create plain: %v", err)
	}
	if err := base.CreateFileFromBytes("tool", nil, true); err != nil {
		t.Fatalf("create executable: %v", err)
	}

	info, err := base.StatFile("plain")
	if err != nil {
		t.Fatalf("stat plain: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Fatalf("plain perm = %o, want 644", perm)
	}
	info, err = base.StatFile("tool")
	if err != nil {
		t.Fatalf("stat tool: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0755 {
		t.Fatalf("executable perm = %o, want 755", perm)
	}
}

func TestStorageRoundTrip(t *testing.T) {
	base, store := newTestBase(t)
	ctx := context.Background()
	content := []byte("submission source code")

	digest, err := store.PutFileFromReader(ctx, bytes.NewReader(content), "source")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := base.CreateFileFromStorage(ctx, "main.c", digest, false); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	data, err := base.GetFileToString("main.c", NoTrunc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("materialized %q, want %q", data, content)
	}

	outDigest, err := base.GetFileToStorage(ctx, "main.c", "stored back", NoTrunc)
	if err != nil {
		t.Fatalf("store back: %v", err)
	}
	if outDigest != digest {
		t.Fatalf("round trip digest %s != %s", outDigest, digest)
	}
	desc, err := store.Describe(ctx, outDigest)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if desc != "stored back" {
		t.Fatalf("description = %q", desc)
	}
}

func TestGetFileTruncation(t *testing.T) {
	base, _ := newTestBase(t)
	if err := base.CreateFileFromBytes("big.txt", bytes.Repeat([]byte("x"), 4096), false); err != nil {
		t.Fatalf("create: %v", err)
	}

	f, err := base.GetFile("big.txt", 100)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 100 {
		t.Fatalf("truncated read returned %d bytes, want 100", len(data))
	}

	text, err := base.GetFileText("big.txt", 10)
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if text != strings.Repeat("x", 10) {
		t.Fatalf("text = %q", text)
	}

	capped, err := base.GetFileToString("big.txt", DefaultReadLen)
	if err != nil {
		t.Fatalf("capped read: %v", err)
	}
	if int64(len(capped)) != DefaultReadLen {
		t.Fatalf("capped read returned %d bytes, want %d", len(capped), DefaultReadLen)
	}
}

func TestGetFileMissing(t *testing.T) {
	base, _ := newTestBase(t)
	_, err := base.GetFile("nope.txt", NoTrunc)
	if code := appErr.GetCode(err); code != appErr.FileNotFound {
		t.Fatalf("missing file err = %v, want code %d", err, appErr.FileNotFound)
	}
}

func TestFileExistsAndRemove(t *testing.T) {
	base, _ := newTestBase(t)
	if base.FileExists("f") {
		t.Fatal("FileExists on missing file")
	}
	if err := base.CreateFileFromBytes("f", []byte("x"), false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !base.FileExists("f") {
		t.Fatal("FileExists false after create")
	}
	if err := base.RemoveFile("f"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if base.FileExists("f") {
		t.Fatal("FileExists true after remove")
	}
}

func TestSetMultiprocess(t *testing.T) {
	base, _ := newTestBase(t)
	base.SetMultiprocess(true)
	if base.MaxProcesses != 1000 {
		t.Fatalf("multiprocess ceiling = %d, want 1000", base.MaxProcesses)
	}
	base.SetMultiprocess(false)
	if base.MaxProcesses != 1 {
		t.Fatalf("single process ceiling = %d, want 1", base.MaxProcesses)
	}
}

// statsFake reports controllable usage numbers through the Sandbox surface.
type statsFake struct {
	Base
	execTime time.Duration
	timeOK   bool
	memory   int64
	memOK    bool
}

func (s *statsFake) ExecutionTime() (time.Duration, bool) { return s.execTime, s.timeOK }
func (s *statsFake) MemoryUsed() (int64, bool)            { return s.memory, s.memOK }
func (s *statsFake) KillingSignal() int                   { return 0 }
func (s *statsFake) GetExitStatus() ExitStatus            { return ExitOK }
func (s *statsFake) ExitCode() int                        { return 0 }
func (s *statsFake) HumanExitDescription() string         { return "" }
func (s *statsFake) TranslateBoxExitcode(code int) bool   { return true }
func (s *statsFake) Cleanup(delete bool) error            { return nil }
func (s *statsFake) ExecuteWithoutStd(ctx context.Context, command []string, wait bool) (bool, *Process, error) {
	return true, nil, nil
}

func TestStats(t *testing.T) {
	cases := []struct {
		name string
		box  *statsFake
		want string
	}{
		{
			name: "both known",
			box:  &statsFake{execTime: 1500 * time.Millisecond, timeOK: true, memory: 64 << 20, memOK: true},
			want: "[1.500 sec - 64.00 MB]",
		},
		{
			name: "nothing known",
			box:  &statsFake{},
			want: "[(time unknown) - (memory usage unknown)]",
		},
		{
			name: "memory unknown",
			box:  &statsFake{execTime: 250 * time.Millisecond, timeOK: true},
			want: "[0.250 sec - (memory usage unknown)]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Stats(tc.box); got != tc.want {
				t.Fatalf("Stats = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCommandLog(t *testing.T) {
	base, _ := newTestBase(t)
	base.logCommand([]string{"/usr/bin/gcc", "-o", "prog", "main.c"})
	base.logCommand([]string{"./prog"})

	text, err := base.GetFileText(commandLogName, NoTrunc)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := fmt.Sprintf("%s\n%s\n", "/usr/bin/gcc -o prog main.c", "./prog")
	if text != want {
		t.Fatalf("command log = %q, want %q", text, want)
	}
	if filepath.Base(commandLogName) != commandLogName {
		t.Fatalf("command log name %q must be root-relative", commandLogName)
	}
}
