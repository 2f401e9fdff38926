package tool

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/atlasagent/coreloop/internal/pty"
	"github.com/atlasagent/coreloop/internal/sandbox"
	"github.com/atlasagent/coreloop/internal/tool/permission"
	"github.com/atlasagent/coreloop/internal/tool/ui"
)

const (
	IconPTY = "▣"
)

// sandboxExecutable is the optional path to the Linux landlock helper
// binary, resolved once at startup; empty disables landlock transforms
// and leaves seatbelt/Windows transforms (which don't need it) unaffected.
var sandboxExecutable = os.Getenv("GEN_SANDBOX_EXEC")

// ptyManager is the process-wide PTY session registry shared by every
// PTY-backed tool. Sessions are sandboxed per-call according to the
// sandbox.Policy resolved by policy.Gateway and threaded in through
// params["_sandboxPolicy"] (see resolveSandboxPolicy).
var ptyManager = pty.NewManager(32, sandbox.NewManager(sandboxExecutable))

// resolveSandboxPolicy extracts the sandbox.Policy that core.Loop.ExecTool
// stashed in params for this call, falling back to an unrestricted policy
// when no gateway is wired (e.g. tools invoked outside core.Loop).
func resolveSandboxPolicy(params map[string]any) sandbox.Policy {
	if p, ok := params["_sandboxPolicy"].(sandbox.Policy); ok {
		return p
	}
	return sandbox.FullAccess()
}

// RunPTYCommandTool is the PTY-backed generalization of BashTool: instead
// of a plain os/exec.Command, it spawns the command in a real pseudo-
// terminal and returns its ANSI-stripped output. Kept alongside BashTool
// (not replacing it yet) so both remain available for the registry to
// resolve by name.
type RunPTYCommandTool struct{}

func (t *RunPTYCommandTool) Name() string        { return "RunPTYCommand" }
func (t *RunPTYCommandTool) Description() string { return "Run a shell command inside a pseudo-terminal" }
func (t *RunPTYCommandTool) Icon() string        { return IconPTY }

func (t *RunPTYCommandTool) RequiresPermission() bool { return true }

func (t *RunPTYCommandTool) PreparePermission(ctx context.Context, params map[string]any, cwd string) (*permission.PermissionRequest, error) {
	command, ok := params["command"].(string)
	if !ok || command == "" {
		return nil, &ToolError{Message: "command is required"}
	}
	description, _ := params["description"].(string)
	return &permission.PermissionRequest{
		ID:       generateRequestID(),
		ToolName: t.Name(),
		BashMeta: &permission.BashMetadata{Command: command, Description: description},
	}, nil
}

func (t *RunPTYCommandTool) ExecuteApproved(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	start := time.Now()
	command, _ := params["command"].(string)
	if command == "" {
		return ui.ToolResult{Success: false, Error: "command is required", Metadata: ui.ResultMetadata{Title: t.Name(), Icon: t.Icon()}}
	}

	timeout := 120 * time.Second
	if timeoutMs, ok := params["timeout"].(float64); ok && timeoutMs > 0 {
		timeout = min(time.Duration(timeoutMs)*time.Millisecond, 600*time.Second)
	}
	rows, cols := 24, 80
	if r, ok := params["rows"].(float64); ok && r > 0 {
		rows = int(r)
	}
	if c, ok := params["cols"].(float64); ok && c > 0 {
		cols = int(c)
	}

	result, err := ptyManager.Run(ctx, pty.CreateOptions{
		Command:    command,
		WorkingDir: cwd,
		Rows:       rows,
		Cols:       cols,
		Policy:     resolveSandboxPolicy(params),
	}, timeout)
	duration := time.Since(start)

	if err != nil {
		return ui.ToolResult{
			Success: false,
			Error:   err.Error(),
			Metadata: ui.ResultMetadata{
				Title: t.Name(), Icon: t.Icon(), Subtitle: "Failed to start", Duration: duration,
			},
		}
	}

	subtitle := fmt.Sprintf("exit %d", result.ExitCode)
	if result.ExitCode == 127 {
		subtitle = "command not found"
	}

	// A run that completed (even with a non-zero exit code) is still a
	// successful tool invocation — the caller inspects ExitCode.
	return ui.ToolResult{
		Success: true,
		Output:  result.Output,
		Metadata: ui.ResultMetadata{
			Title:    t.Name(),
			Icon:     t.Icon(),
			Subtitle: subtitle,
			Duration: duration,
		},
	}
}

func (t *RunPTYCommandTool) Execute(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	return t.ExecuteApproved(ctx, params, cwd)
}

// CreatePTYSessionTool opens a long-lived PTY session for interactive,
// multi-step terminal use (as opposed to RunPTYCommand's one-shot run).
type CreatePTYSessionTool struct{}

func (t *CreatePTYSessionTool) Name() string        { return "CreatePTYSession" }
func (t *CreatePTYSessionTool) Description() string { return "Open a long-lived pseudo-terminal session" }
func (t *CreatePTYSessionTool) Icon() string        { return IconPTY }

func (t *CreatePTYSessionTool) RequiresPermission() bool { return true }

func (t *CreatePTYSessionTool) PreparePermission(ctx context.Context, params map[string]any, cwd string) (*permission.PermissionRequest, error) {
	command, _ := params["command"].(string)
	return &permission.PermissionRequest{
		ID:       generateRequestID(),
		ToolName: t.Name(),
		BashMeta: &permission.BashMetadata{Command: command},
	}, nil
}

func (t *CreatePTYSessionTool) ExecuteApproved(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	command, _ := params["command"].(string)
	if command == "" {
		command = "bash"
	}
	rows, cols := 24, 80
	if r, ok := params["rows"].(float64); ok && r > 0 {
		rows = int(r)
	}
	if c, ok := params["cols"].(float64); ok && c > 0 {
		cols = int(c)
	}

	session, err := ptyManager.Create(ctx, pty.CreateOptions{Command: command, WorkingDir: cwd, Rows: rows, Cols: cols, Policy: resolveSandboxPolicy(params)})
	if err != nil {
		return ui.ToolResult{Success: false, Error: err.Error(), Metadata: ui.ResultMetadata{Title: t.Name(), Icon: t.Icon()}}
	}

	return ui.ToolResult{
		Success: true,
		Output:  fmt.Sprintf("Session created.\nSession ID: %s\nCommand: %s\nSize: %dx%d", session.ID, command, rows, cols),
		Metadata: ui.ResultMetadata{
			Title:    t.Name(),
			Icon:     t.Icon(),
			Subtitle: session.ID,
		},
	}
}

func (t *CreatePTYSessionTool) Execute(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	return t.ExecuteApproved(ctx, params, cwd)
}

// SendPTYInputTool writes text to an existing PTY session and returns its
// current scrollback snapshot.
type SendPTYInputTool struct{}

func (t *SendPTYInputTool) Name() string        { return "SendPTYInput" }
func (t *SendPTYInputTool) Description() string { return "Send input to an open pseudo-terminal session and read its output" }
func (t *SendPTYInputTool) Icon() string        { return IconPTY }

func (t *SendPTYInputTool) Execute(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	sessionID, _ := params["session_id"].(string)
	input, _ := params["input"].(string)
	if sessionID == "" {
		return ui.ToolResult{Success: false, Error: "session_id is required", Metadata: ui.ResultMetadata{Title: t.Name(), Icon: t.Icon()}}
	}

	session, ok := ptyManager.Get(sessionID)
	if !ok {
		return ui.ToolResult{Success: false, Error: fmt.Sprintf("unknown pty session %s", sessionID), Metadata: ui.ResultMetadata{Title: t.Name(), Icon: t.Icon()}}
	}

	if input != "" {
		if err := session.SendInput(input); err != nil {
			return ui.ToolResult{Success: false, Error: err.Error(), Metadata: ui.ResultMetadata{Title: t.Name(), Icon: t.Icon()}}
		}
	}

	// Give the child a brief moment to produce output before reading back
	// the scrollback; this mirrors an interactive terminal's natural
	// round-trip latency rather than racing the read against the write.
	time.Sleep(150 * time.Millisecond)

	return ui.ToolResult{
		Success: true,
		Output:  pty.StripANSI(session.Snapshot()),
		Metadata: ui.ResultMetadata{
			Title:    t.Name(),
			Icon:     t.Icon(),
			Subtitle: fmt.Sprintf("%s (exited=%v)", sessionID, session.IsExited()),
		},
	}
}

func init() {
	Register(&RunPTYCommandTool{})
	Register(&CreatePTYSessionTool{})
	Register(&SendPTYInputTool{})
}
