package sandbox

import "sync"

// Process is a handle to a command launched asynchronously inside a sandbox.
// The caller must eventually call Wait to reap the child and freeze the
// sandbox's post-execution state.
type Process struct {
	waitFn func() (bool, error)
	once   sync.Once
	ok     bool
	err    error
}

func newProcess(waitFn func() (bool, error)) *Process {
	return &Process{waitFn: waitFn}
}

// Wait blocks until the command finishes and reports whether the sandbox
// itself ran without internal errors, exactly as the synchronous form of
// ExecuteWithoutStd would. Safe to call more than once.
func (p *Process) Wait() (bool, error) {
	p.once.Do(func() {
		p.ok, p.err = p.waitFn()
	})
	return p.ok, p.err
}
