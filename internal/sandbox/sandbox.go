package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"gradebox/internal/storage"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"
)

// NoTrunc disables truncation on read operations that accept a byte ceiling.
const NoTrunc int64 = -1

// DefaultReadLen is the default byte cap for GetFileToString callers that
// only need a short excerpt.
const DefaultReadLen int64 = 1024

// commandLogName is the per-sandbox file recording every executed command
// for post-mortem diagnosis.
const commandLogName = "commands.log"

// Sandbox is the contract every isolation backend must satisfy. One Sandbox
// value owns one isolated filesystem root and represents exactly one
// execution lifecycle: create, populate files, run one or more commands,
// inspect, cleanup. Resource-usage accessors are undefined before the first
// run and frozen after each run until the next.
type Sandbox interface {
	// RootPath returns the absolute path of the sandbox filesystem root.
	// Stable for the sandbox's lifetime.
	RootPath() string

	// RelativePath joins a sandbox-relative path onto the root. Paths that
	// would escape the root are rejected.
	RelativePath(path string) (string, error)

	// CreateFile creates a new file, failing if the path already exists.
	// The caller must close the returned file.
	CreateFile(path string, executable bool) (*os.File, error)

	// CreateFileFromStorage materializes the blob identified by digest at
	// path.
	CreateFileFromStorage(ctx context.Context, path, digest string, executable bool) error

	// CreateFileFromBytes writes literal content to a new file at path.
	CreateFileFromBytes(path string, content []byte, executable bool) error

	// GetFile opens an existing file read-only. A non-negative truncLen
	// bounds the readable bytes through a Truncator.
	GetFile(path string, truncLen int64) (io.ReadCloser, error)

	// GetFileText reads a file as UTF-8 text, optionally truncated.
	// Decoding problems are the caller's to handle.
	GetFileText(path string, truncLen int64) (string, error)

	// GetFileToString reads at most maxLen bytes of a file; maxLen < 0
	// reads everything.
	GetFileToString(path string, maxLen int64) ([]byte, error)

	// GetFileToStorage persists the (optionally truncated) file content to
	// the storage collaborator and returns its digest.
	GetFileToStorage(ctx context.Context, path, description string, truncLen int64) (string, error)

	StatFile(path string) (os.FileInfo, error)
	FileExists(path string) bool
	RemoveFile(path string) error

	// SetMultiprocess toggles the process/thread ceiling between the hard
	// single-process default and a large bounded value.
	SetMultiprocess(multiprocess bool)

	// ExecutionTime reports the time spent by the sandboxed process; the
	// second value is false when unknown.
	ExecutionTime() (time.Duration, bool)

	// MemoryUsed reports memory used in bytes; false when unknown.
	MemoryUsed() (int64, bool)

	// KillingSignal returns the signal that killed the process, 0 if none.
	KillingSignal() int

	// GetExitStatus classifies how the last run terminated.
	GetExitStatus() ExitStatus

	// ExitCode returns the process exit code of the last run.
	ExitCode() int

	// HumanExitDescription explains the last run's termination in a
	// human-readable form.
	HumanExitDescription() string

	// ExecuteWithoutStd launches command inside the sandbox with standard
	// input closed right after start and standard output/error drained
	// continuously so the child can never block on a full pipe. With
	// wait=true the call blocks and ok reports whether the sandbox itself
	// ran without internal errors (distinct from the child's own outcome);
	// with wait=false a handle to the running process is returned and ok is
	// meaningless until the handle's Wait.
	ExecuteWithoutStd(ctx context.Context, command []string, wait bool) (ok bool, proc *Process, err error)

	// TranslateBoxExitcode maps a backend-specific exit code to
	// sandbox-level success (true) or sandbox-level failure (false).
	TranslateBoxExitcode(code int) bool

	// Cleanup releases the sandbox. Idempotent and safe to call at any
	// time, including after failed or partial executions. With delete=true
	// the root and everything under it is removed.
	Cleanup(delete bool) error
}

// Base carries the state and file management shared by every backend.
// Backends embed Base and supply the execution and inspection operations.
type Base struct {
	// Name is a diagnostic label that may appear in paths and logs.
	Name string
	// BoxID is the backend-assigned numeric identifier.
	BoxID int
	// TempDir is the directory under which the root is allocated.
	TempDir string

	// Resource configuration, enforced by the backend at execution time.
	MaxProcesses int
	MaxCPUTime   time.Duration
	MaxWallTime  time.Duration
	MaxMemory    int64 // bytes
	MaxFileSize  int64 // bytes, per writable file
	// Dirs lists sandbox-relative directories guaranteed to exist before a
	// command is launched.
	Dirs        []string
	PreserveEnv bool
	InheritEnv  []string
	SetEnv      map[string]string
	UseCgroups  bool

	store storage.FileStore
	root  string
}

// NewBase initializes the common sandbox state. HOME is always forced to a
// sandbox-local path; some toolchains search the home directory for
// packages.
func NewBase(store storage.FileStore, name, tempDir string) Base {
	if name == "" {
		name = "unnamed"
	}
	return Base{
		Name:         name,
		TempDir:      tempDir,
		MaxProcesses: 1,
		SetEnv:       map[string]string{"HOME": "./"},
		store:        store,
	}
}

// RootPath returns the sandbox root. Backends set it once at creation.
func (b *Base) RootPath() string {
	return b.root
}

func (b *Base) setRoot(root string) {
	b.root = root
}

// BaseRef exposes the embedded Base so callers holding a Sandbox can adjust
// resource limits without knowing the backend type.
func (b *Base) BaseRef() *Base {
	return b
}

// RelativePath translates a sandbox-relative path to a host path under the
// root. Traversal out of the root is a security violation and is rejected.
func (b *Base) RelativePath(path string) (string, error) {
	joined := filepath.Join(b.root, path)
	if joined != b.root && !strings.HasPrefix(joined, b.root+string(filepath.Separator)) {
		return "", appErr.PathError(appErr.PathEscape, "resolve", path)
	}
	return joined, nil
}

// CreateFile creates an empty file in the sandbox and opens it for exclusive
// write. Creation fails if the path exists: a collision means either a logic
// bug in the caller or tampering by the submission, so it is logged with
// full context before propagating.
func (b *Base) CreateFile(path string, executable bool) (*os.File, error) {
	realPath, err := b.RelativePath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(realPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		logger.Error(context.Background(), "failed to create file in sandbox, submission cannot be evaluated, possible tampering",
			zap.String("sandbox", b.Name),
			zap.String("path", realPath),
			zap.Error(err))
		if errors.Is(err, fs.ErrExist) {
			return nil, appErr.Wrap(err, appErr.FileExists).WithDetail("path", path)
		}
		return nil, err
	}
	mode := os.FileMode(0644)
	if executable {
		mode = 0755
	}
	if err := os.Chmod(realPath, mode); err != nil {
		_ = file.Close()
		return nil, err
	}
	return file, nil
}

// CreateFileFromStorage materializes a stored blob into the sandbox.
func (b *Base) CreateFileFromStorage(ctx context.Context, path, digest string, executable bool) error {
	file, err := b.CreateFile(path, executable)
	if err != nil {
		return err
	}
	if err := b.store.GetFileToWriter(ctx, digest, file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// CreateFileFromBytes writes literal content into a new sandbox file.
func (b *Base) CreateFileFromBytes(path string, content []byte, executable bool) error {
	file, err := b.CreateFile(path, executable)
	if err != nil {
		return err
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// GetFile opens a sandbox file read-only. With a non-negative truncLen the
// returned stream is a bounded view, so a hostile program's oversized output
// cannot be read in full.
func (b *Base) GetFile(path string, truncLen int64) (io.ReadCloser, error) {
	realPath, err := b.RelativePath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(realPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.Wrap(err, appErr.FileNotFound).WithDetail("path", path)
		}
		return nil, err
	}
	if truncLen >= 0 {
		return NewTruncator(file, truncLen), nil
	}
	return file, nil
}

// GetFileText reads a sandbox file as UTF-8 text. Invalid sequences are
// passed through untouched; handling them is up to the caller.
func (b *Base) GetFileText(path string, truncLen int64) (string, error) {
	file, err := b.GetFile(path, truncLen)
	if err != nil {
		return "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetFileToString returns up to maxLen bytes of a sandbox file; a negative
// maxLen reads the whole file.
func (b *Base) GetFileToString(path string, maxLen int64) ([]byte, error) {
	file, err := b.GetFile(path, NoTrunc)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var r io.Reader = file
	if maxLen >= 0 {
		r = io.LimitReader(file, maxLen)
	}
	return io.ReadAll(r)
}

// GetFileToStorage persists a sandbox file to the storage collaborator and
// returns its content digest.
func (b *Base) GetFileToStorage(ctx context.Context, path, description string, truncLen int64) (string, error) {
	file, err := b.GetFile(path, truncLen)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return b.store.PutFileFromReader(ctx, file, description)
}

// StatFile returns the metadata of a sandbox file. OS-level errors propagate
// unchanged.
func (b *Base) StatFile(path string) (os.FileInfo, error) {
	realPath, err := b.RelativePath(path)
	if err != nil {
		return nil, err
	}
	return os.Stat(realPath)
}

// FileExists reports whether a file exists in the sandbox.
func (b *Base) FileExists(path string) bool {
	realPath, err := b.RelativePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(realPath)
	return err == nil
}

// RemoveFile deletes a sandbox file.
func (b *Base) RemoveFile(path string) error {
	realPath, err := b.RelativePath(path)
	if err != nil {
		return err
	}
	return os.Remove(realPath)
}

// SetMultiprocess switches the process/thread ceiling. The multiprocess
// ceiling is 1000 rather than unlimited to bound the blast radius of fork
// bombs while still allowing legitimate multi-threaded submissions.
func (b *Base) SetMultiprocess(multiprocess bool) {
	if multiprocess {
		b.MaxProcesses = 1000
	} else {
		b.MaxProcesses = 1
	}
}

// logCommand appends an executed command to the sandbox command log.
// Failures to record are not fatal to the execution itself.
func (b *Base) logCommand(command []string) {
	logPath := filepath.Join(b.root, commandLogName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logger.Warn(context.Background(), "cannot record command in sandbox log",
			zap.String("sandbox", b.Name), zap.Error(err))
		return
	}
	defer file.Close()
	_, _ = fmt.Fprintln(file, strings.Join(command, " "))
}

// Stats renders a human-readable summary of execution time and memory usage
// for a completed run, with explicit placeholders when the backend could not
// measure a value.
func Stats(s Sandbox) string {
	timeStr := "(time unknown)"
	if t, ok := s.ExecutionTime(); ok {
		timeStr = fmt.Sprintf("%.3f sec", t.Seconds())
	}
	memStr := "(memory usage unknown)"
	if m, ok := s.MemoryUsed(); ok {
		memStr = fmt.Sprintf("%.2f MB", float64(m)/(1024*1024))
	}
	return fmt.Sprintf("[%s - %s]", timeStr, memStr)
}
