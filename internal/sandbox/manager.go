package sandbox

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// TransformError reports why a CommandSpec could not be sandboxed.
type TransformError struct {
	Reason string
}

func (e *TransformError) Error() string { return e.Reason }

// Manager transforms a CommandSpec into an ExecEnv by applying the
// platform-appropriate sandbox wrapper.
//
// Grounded on vtcode-core/src/sandboxing/manager.rs::SandboxManager.
type Manager struct {
	// SandboxExecutable is the path to the Linux landlock helper binary.
	// Required only when Transform selects TypeLinuxLandlock.
	SandboxExecutable string
}

// NewManager creates a sandbox manager.
func NewManager(sandboxExecutable string) *Manager {
	return &Manager{SandboxExecutable: sandboxExecutable}
}

// Transform turns spec into a concrete ExecEnv under policy.
func (m *Manager) Transform(spec CommandSpec, policy Policy, sandboxCwd string) (ExecEnv, error) {
	sandboxType := determineSandboxType(policy)

	if sandboxType == TypeNone {
		return ExecEnv{
			Program:       spec.Program,
			Args:          spec.Args,
			Cwd:           spec.Cwd,
			Env:           spec.Env,
			SandboxActive: false,
			SandboxType:   TypeNone,
		}, nil
	}

	if !sandboxType.IsAvailable() {
		return ExecEnv{}, &TransformError{Reason: fmt.Sprintf("sandbox type %s is not available on this platform", sandboxType)}
	}

	switch sandboxType {
	case TypeMacosSeatbelt:
		return m.transformSeatbelt(spec, policy, sandboxCwd)
	case TypeLinuxLandlock:
		return m.transformLandlock(spec, policy, sandboxCwd)
	case TypeWindowsRestrictedToken:
		return m.transformWindows(spec, policy, sandboxCwd)
	default:
		return ExecEnv{}, &TransformError{Reason: "unreachable sandbox type"}
	}
}

func determineSandboxType(policy Policy) Type {
	switch policy.Kind {
	case PolicyDangerFullAccess, PolicyExternalSandbox:
		return TypeNone
	case PolicyReadOnly, PolicyWorkspaceWrite:
		return PlatformDefault()
	default:
		return TypeNone
	}
}

const seatbeltExecutable = "/usr/bin/sandbox-exec"

func (m *Manager) transformSeatbelt(spec CommandSpec, policy Policy, sandboxCwd string) (ExecEnv, error) {
	profile := buildSeatbeltProfile(policy, sandboxCwd)

	args := append([]string{"-p", profile, spec.Program}, spec.Args...)

	return ExecEnv{
		Program:       seatbeltExecutable,
		Args:          args,
		Cwd:           spec.Cwd,
		Env:           spec.Env,
		SandboxActive: true,
		SandboxType:   TypeMacosSeatbelt,
	}, nil
}

func buildSeatbeltProfile(policy Policy, sandboxCwd string) string {
	profile := "(version 1)\n" +
		"(deny default)\n" +
		"(allow process-exec)\n" +
		"(allow process-fork)\n" +
		"(allow sysctl-read)\n" +
		"(allow mach-lookup)\n" +
		"(allow file-read*)\n"

	switch policy.Kind {
	case PolicyReadOnly:
		profile += "(allow file-write* (literal \"/dev/null\"))\n"
	case PolicyWorkspaceWrite:
		for _, root := range policy.WritableRoots {
			profile += fmt.Sprintf("(allow file-write* (subpath %q))\n", root.Root)
		}
		profile += fmt.Sprintf("(allow file-write* (subpath %q))\n", sandboxCwd)
		if policy.NetworkAccess {
			profile += "(allow network*)\n"
		} else {
			profile += "(allow network* (local unix))\n"
		}
	}

	return profile
}

func (m *Manager) transformLandlock(spec CommandSpec, policy Policy, sandboxCwd string) (ExecEnv, error) {
	if m.SandboxExecutable == "" {
		return ExecEnv{}, &TransformError{Reason: "missing sandbox executable path"}
	}

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return ExecEnv{}, &TransformError{Reason: fmt.Sprintf("failed to serialize sandbox policy: %v", err)}
	}

	args := []string{
		"--sandbox-policy-cwd", sandboxCwd,
		"--sandbox-policy", string(policyJSON),
		"--", spec.Program,
	}
	args = append(args, spec.Args...)

	return ExecEnv{
		Program:       filepath.Clean(m.SandboxExecutable),
		Args:          args,
		Cwd:           spec.Cwd,
		Env:           spec.Env,
		SandboxActive: true,
		SandboxType:   TypeLinuxLandlock,
	}, nil
}

// transformWindows passes the command through unchanged. A full Windows
// sandbox would build a restricted token and job object here.
func (m *Manager) transformWindows(spec CommandSpec, _ Policy, _ string) (ExecEnv, error) {
	return ExecEnv{
		Program:       spec.Program,
		Args:          spec.Args,
		Cwd:           spec.Cwd,
		Env:           spec.Env,
		SandboxActive: false,
		SandboxType:   TypeWindowsRestrictedToken,
	}, nil
}
