//go:build darwin

package sandbox

import "syscall"

// SetupParentDeathSignal has no equivalent to PR_SET_PDEATHSIG on macOS;
// this only sets Setpgid so the process group can still be cleaned up.
func SetupParentDeathSignal() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
