package sandbox

// ProcBoxConfig controls the plain-process reference backend.
type ProcBoxConfig struct {
	// TempDir is where sandbox roots are allocated; defaults to the system
	// temp directory.
	TempDir string
	// HelperPath locates the box-init helper binary.
	HelperPath string
	// SeccompProfile optionally restricts the syscalls available to the
	// sandboxed process; empty disables filtering.
	SeccompProfile string
	// KeepSandbox leaves the root on disk even when Cleanup is asked to
	// delete it, for post-mortem inspection.
	KeepSandbox bool
	// UseCgroups is accepted for configuration compatibility; ProcBox
	// enforces limits through process rlimits only.
	UseCgroups bool
}

// boxInitFailureCode is the exit code the box-init helper reserves for its
// own failures, so they are never mistaken for the child's exit code.
const boxInitFailureCode = 125

const defaultHelperPath = "box-init"

// initRequest is the JSON document handed to the box-init helper on stdin.
type initRequest struct {
	WorkDir        string     `json:"workDir"`
	Cmd            []string   `json:"cmd"`
	Env            []string   `json:"env"`
	StdinPath      string     `json:"stdinPath,omitempty"`
	StdoutPath     string     `json:"stdoutPath,omitempty"`
	StderrPath     string     `json:"stderrPath,omitempty"`
	SeccompProfile string     `json:"seccompProfile,omitempty"`
	Limits         initLimits `json:"limits"`
}

type initLimits struct {
	CPUTimeMs     int64 `json:"cpuTimeMs"`
	MemoryBytes   int64 `json:"memoryBytes"`
	FileSizeBytes int64 `json:"fileSizeBytes"`
	PIDs          int64 `json:"pids"`
}
