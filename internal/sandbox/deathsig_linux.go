//go:build linux

package sandbox

import "syscall"

// SetupParentDeathSignal ensures a sandboxed child is killed if this
// process dies first, preventing orphaned children from outliving it.
//
// Grounded on child_spawn.rs::setup_parent_death_signal (PR_SET_PDEATHSIG).
func SetupParentDeathSignal() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
		Setpgid:   true,
	}
}
