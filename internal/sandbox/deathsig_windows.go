//go:build windows

package sandbox

import "syscall"

// SetupParentDeathSignal is a no-op on Windows.
func SetupParentDeathSignal() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}
