// Package sandbox transforms a sandbox policy into a concrete, per-OS exec
// environment: a program/args/env tuple ready to hand to os/exec, with the
// environment sanitized down to an explicit allowlist.
//
// Grounded on vtcode-core/src/sandboxing/manager.rs and child_spawn.rs.
package sandbox

import "runtime"

// Type identifies which platform-native sandbox mechanism backs a policy.
type Type int

const (
	TypeNone Type = iota
	TypeMacosSeatbelt
	TypeLinuxLandlock
	TypeWindowsRestrictedToken
)

// PlatformDefault returns the sandbox mechanism native to the running OS.
func PlatformDefault() Type {
	switch runtime.GOOS {
	case "darwin":
		return TypeMacosSeatbelt
	case "linux":
		return TypeLinuxLandlock
	case "windows":
		return TypeWindowsRestrictedToken
	default:
		return TypeNone
	}
}

// IsAvailable reports whether this sandbox type can actually be engaged on
// the running OS.
func (t Type) IsAvailable() bool {
	switch t {
	case TypeNone:
		return true
	case TypeMacosSeatbelt:
		return runtime.GOOS == "darwin"
	case TypeLinuxLandlock:
		return runtime.GOOS == "linux"
	case TypeWindowsRestrictedToken:
		return runtime.GOOS == "windows"
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeMacosSeatbelt:
		return "macos-seatbelt"
	case TypeLinuxLandlock:
		return "linux-landlock"
	case TypeWindowsRestrictedToken:
		return "windows-restricted-token"
	default:
		return "unknown"
	}
}

// WritableRoot is a directory the sandboxed process may write beneath.
type WritableRoot struct {
	Root string
}

// Policy is the sandbox policy selected for one command execution.
type Policy struct {
	Kind           PolicyKind
	WritableRoots  []WritableRoot
	NetworkAccess  bool
	ExternalTarget string // set when Kind == PolicyExternalSandbox
}

// PolicyKind enumerates the sandbox policy variants.
type PolicyKind int

const (
	// PolicyDangerFullAccess runs with no sandboxing at all.
	PolicyDangerFullAccess PolicyKind = iota
	// PolicyExternalSandbox defers isolation to an external sandbox the
	// caller already runs inside (e.g. a container); this process adds none.
	PolicyExternalSandbox
	// PolicyReadOnly allows no writes at all (besides /dev/null).
	PolicyReadOnly
	// PolicyWorkspaceWrite allows writes under WritableRoots and the cwd.
	PolicyWorkspaceWrite
)

// FullAccess returns the no-sandbox policy.
func FullAccess() Policy { return Policy{Kind: PolicyDangerFullAccess} }

// ReadOnly returns a policy permitting no filesystem writes.
func ReadOnly() Policy { return Policy{Kind: PolicyReadOnly} }

// WorkspaceWrite returns a policy permitting writes under the given roots.
func WorkspaceWrite(roots []string, network bool) Policy {
	wr := make([]WritableRoot, len(roots))
	for i, r := range roots {
		wr[i] = WritableRoot{Root: r}
	}
	return Policy{Kind: PolicyWorkspaceWrite, WritableRoots: wr, NetworkAccess: network}
}

// CommandSpec is the untransformed command the caller wants to run.
type CommandSpec struct {
	Program string
	Args    []string
	Cwd     string
	Env     map[string]string
}

// ExecEnv is the transformed, ready-to-run command.
type ExecEnv struct {
	Program       string
	Args          []string
	Cwd           string
	Env           map[string]string
	SandboxActive bool
	SandboxType   Type
}
