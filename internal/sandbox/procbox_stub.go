//go:build !linux

package sandbox

import (
	"gradebox/internal/storage"
	appErr "gradebox/pkg/errors"
)

// NewProcBox is only available on linux; other platforms get a sandbox
// error at construction time.
func NewProcBox(store storage.FileStore, name string, boxID int, cfg ProcBoxConfig) (Sandbox, error) {
	return nil, appErr.New(appErr.SandboxError).WithMessage("procbox sandbox is only supported on linux")
}
