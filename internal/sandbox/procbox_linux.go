//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"gradebox/internal/storage"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"
)

// ProcBox is the plain-process reference backend. It launches commands
// through the box-init helper, which applies rlimits and IO redirection
// before exec'ing the target, and enforces the wall-clock limit from the
// parent by killing the process group. It deliberately stops short of
// kernel-level isolation; stronger backends plug in behind the same Sandbox
// interface.
type ProcBox struct {
	Base
	cfg ProcBoxConfig

	hasRun        bool
	executionTime time.Duration
	timeKnown     bool
	memoryUsed    int64
	memKnown      bool
	killSignal    syscall.Signal
	exitCode      int
	exitStatus    ExitStatus
	wallTimedOut  bool
}

var _ Sandbox = (*ProcBox)(nil)

// NewProcBox allocates a fresh sandbox root and returns the backend bound to
// it. Each call produces a distinct root, so independent sandboxes never
// contend for the same directory.
func NewProcBox(store storage.FileStore, name string, boxID int, cfg ProcBoxConfig) (Sandbox, error) {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.HelperPath == "" {
		cfg.HelperPath = defaultHelperPath
	}
	box := &ProcBox{
		Base: NewBase(store, name, cfg.TempDir),
		cfg:  cfg,
	}
	box.BoxID = boxID
	root := filepath.Join(cfg.TempDir, fmt.Sprintf("%s-%d-%s", box.Name, boxID, uuid.NewString()))
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, appErr.SandboxInternal(err, "cannot allocate sandbox root")
	}
	box.setRoot(root)
	return box, nil
}

// ExecutionTime reports CPU time consumed by the last run.
func (p *ProcBox) ExecutionTime() (time.Duration, bool) {
	return p.executionTime, p.hasRun && p.timeKnown
}

// MemoryUsed reports the peak resident set of the last run, in bytes.
func (p *ProcBox) MemoryUsed() (int64, bool) {
	return p.memoryUsed, p.hasRun && p.memKnown
}

// KillingSignal returns the signal that terminated the last run, 0 if none.
func (p *ProcBox) KillingSignal() int {
	if p.killSignal < 0 {
		return 0
	}
	return int(p.killSignal)
}

func (p *ProcBox) GetExitStatus() ExitStatus {
	return p.exitStatus
}

func (p *ProcBox) ExitCode() int {
	return p.exitCode
}

func (p *ProcBox) HumanExitDescription() string {
	switch p.exitStatus {
	case ExitOK:
		return fmt.Sprintf("Execution successfully finished (with exit code %d)", p.exitCode)
	case ExitSandboxError:
		return "Execution failed because of sandbox error"
	case ExitTimeout:
		return "Execution timed out"
	case ExitWallTimeout:
		return "Execution timed out (wall clock limit exceeded)"
	case ExitSignal:
		return fmt.Sprintf("Execution killed with signal %d", int(p.killSignal))
	case ExitNonzeroReturn:
		return fmt.Sprintf("Execution failed because the return code was %d", p.exitCode)
	default:
		return "Execution has not run yet"
	}
}

// TranslateBoxExitcode maps the helper's exit code to sandbox-level success.
// The helper reserves one code for its own failures; every other code
// belongs to the child.
func (p *ProcBox) TranslateBoxExitcode(code int) bool {
	return code != boxInitFailureCode
}

// ExecuteWithoutStd launches command through the box-init helper. The
// child's stdin is /dev/null and its stdout/stderr are drained to the
// equivalent of /dev/null, so it can never deadlock against a full pipe.
func (p *ProcBox) ExecuteWithoutStd(ctx context.Context, command []string, wait bool) (bool, *Process, error) {
	if len(command) == 0 {
		return false, nil, appErr.ValidationError("command", "required")
	}
	if err := p.ensureDirs(); err != nil {
		p.finishSandboxError()
		return false, nil, err
	}
	p.logCommand(command)

	req := initRequest{
		WorkDir:        p.RootPath(),
		Cmd:            command,
		Env:            p.buildEnv(),
		SeccompProfile: p.cfg.SeccompProfile,
		Limits: initLimits{
			CPUTimeMs:     p.MaxCPUTime.Milliseconds(),
			MemoryBytes:   p.MaxMemory,
			FileSizeBytes: p.MaxFileSize,
			PIDs:          int64(p.MaxProcesses),
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		p.finishSandboxError()
		return false, nil, appErr.SandboxInternal(err, "encode init request failed")
	}

	cmd := exec.Command(p.cfg.HelperPath)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = io.Discard
	var helperStderr bytes.Buffer
	cmd.Stderr = &helperStderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		p.finishSandboxError()
		return false, nil, appErr.SandboxInternal(err, "start sandbox helper failed")
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if p.MaxWallTime > 0 {
			wallTimer = time.After(p.MaxWallTime)
		}
		select {
		case <-ctx.Done():
			p.killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			p.killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	finish := func() (bool, error) {
		_ = cmd.Wait()
		close(done)
		p.record(cmd.ProcessState, timedOut.Load())
		if p.exitStatus == ExitSandboxError && helperStderr.Len() > 0 {
			logger.Warn(ctx, "sandbox helper failed",
				zap.String("sandbox", p.Name),
				zap.String("stderr", helperStderr.String()))
		}
		return p.TranslateBoxExitcode(p.exitCode), nil
	}

	if wait {
		ok, err := finish()
		return ok, nil, err
	}
	return false, newProcess(finish), nil
}

// record freezes the post-execution state from the reaped process.
func (p *ProcBox) record(state *os.ProcessState, wallTimedOut bool) {
	p.hasRun = true
	p.wallTimedOut = wallTimedOut
	p.killSignal = 0
	p.timeKnown = false
	p.memKnown = false

	if state == nil {
		p.exitCode = -1
		p.exitStatus = ExitSandboxError
		return
	}

	if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
		utime := time.Duration(usage.Utime.Sec)*time.Second + time.Duration(usage.Utime.Usec)*time.Microsecond
		stime := time.Duration(usage.Stime.Sec)*time.Second + time.Duration(usage.Stime.Usec)*time.Microsecond
		p.executionTime = utime + stime
		p.timeKnown = true
		p.memoryUsed = usage.Maxrss * 1024
		p.memKnown = true
	}

	p.exitCode = state.ExitCode()
	ws, isWait := state.Sys().(syscall.WaitStatus)
	if isWait && ws.Signaled() {
		p.killSignal = ws.Signal()
	}

	switch {
	case p.exitCode == boxInitFailureCode:
		p.exitStatus = ExitSandboxError
	case wallTimedOut:
		p.exitStatus = ExitWallTimeout
	case p.killSignal == syscall.SIGXCPU,
		p.MaxCPUTime > 0 && p.timeKnown && p.executionTime >= p.MaxCPUTime:
		p.exitStatus = ExitTimeout
	case p.killSignal != 0:
		p.exitStatus = ExitSignal
	case p.exitCode != 0:
		p.exitStatus = ExitNonzeroReturn
	default:
		p.exitStatus = ExitOK
	}
}

func (p *ProcBox) finishSandboxError() {
	p.hasRun = true
	p.exitCode = -1
	p.killSignal = 0
	p.timeKnown = false
	p.memKnown = false
	p.exitStatus = ExitSandboxError
}

// ensureDirs creates the configured sandbox-relative directories under the
// root, so commands can rely on them existing before launch.
func (p *ProcBox) ensureDirs() error {
	for _, dir := range p.Dirs {
		realPath, err := p.RelativePath(dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(realPath, 0755); err != nil {
			return appErr.SandboxInternal(err, "create sandbox directory failed")
		}
	}
	return nil
}

// buildEnv applies the environment policy: fully inherit, selectively
// inherit via allow-list, or explicitly set. SetEnv entries come last so
// they always win; HOME stays sandbox-local either way.
func (p *ProcBox) buildEnv() []string {
	var env []string
	if p.PreserveEnv {
		env = os.Environ()
	} else {
		for _, key := range p.InheritEnv {
			if value, ok := os.LookupEnv(key); ok {
				env = append(env, key+"="+value)
			}
		}
	}
	keys := make([]string, 0, len(p.SetEnv))
	for key := range p.SetEnv {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+p.SetEnv[key])
	}
	return env
}

func (p *ProcBox) killProcessGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}

// Cleanup releases the sandbox. Safe to call multiple times and after
// failed or partial executions; it never leaves the temp tree in a state
// that blocks a future sandbox from acquiring a fresh root. KeepSandbox
// overrides deletion so operators can inspect the root post-mortem.
func (p *ProcBox) Cleanup(deleteRoot bool) error {
	if !deleteRoot || p.cfg.KeepSandbox {
		return nil
	}
	if err := os.RemoveAll(p.RootPath()); err != nil {
		return appErr.Wrapf(err, appErr.SandboxCleanupFailed, "remove sandbox root failed")
	}
	return nil
}
