// Package sandbox defines the execution contract for running untrusted,
// freshly-compiled submissions inside a resource-bounded, isolated
// environment. Concrete isolation backends implement the Sandbox interface;
// callers hold the interface and never a backend type.
package sandbox

// ExitStatus classifies how a sandboxed run terminated. Exactly one status
// applies per completed run attempt. ExitSandboxError means the isolation
// layer itself failed and must never be interpreted as program misbehavior;
// callers branch on it before looking at exit code or signal.
type ExitStatus string

const (
	ExitSandboxError  ExitStatus = "sandbox error"
	ExitOK            ExitStatus = "ok"
	ExitSignal        ExitStatus = "signal"
	ExitTimeout       ExitStatus = "timeout"
	ExitWallTimeout   ExitStatus = "wall timeout"
	ExitNonzeroReturn ExitStatus = "nonzero return"
)
