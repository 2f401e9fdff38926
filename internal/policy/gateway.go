package policy

import (
	"sync"

	"github.com/atlasagent/coreloop/internal/config"
	"github.com/atlasagent/coreloop/internal/permission"
	"github.com/atlasagent/coreloop/internal/sandbox"
)

// destructiveTools get +30 to their risk score regardless of the
// CommandArgs text, matching the teacher's "always ask for destructive
// Bash commands" carve-out in config.Settings.CheckPermission.
var destructiveTools = map[string]bool{
	"Bash":       true,
	"ApplyPatch": true,
}

var writeTools = map[string]bool{
	"Write": true, "Edit": true, "ApplyPatch": true, "Create": true,
}

var networkTools = map[string]bool{
	"WebFetch": true, "WebSearch": true,
}

// IsMutatingTool reports whether toolName changes state outside the
// conversation through the filesystem or the shell, using the same tables
// Evaluate consults when classifying risk. Network tools (WebFetch,
// WebSearch) are not counted as mutating.
func IsMutatingTool(toolName string) bool {
	return writeTools[toolName] || destructiveTools[toolName]
}

// Threshold controls how aggressively the gateway demands approval: a
// tool call whose risk level meets or exceeds Threshold is downgraded to
// "ask" even if the configured rules would otherwise auto-allow it.
type Threshold = RiskLevel

// approvalHistory counts recent approvals per tool name, feeding the risk
// reduction term. Guarded by mu since tool calls may run concurrently.
type approvalHistory struct {
	mu     sync.Mutex
	counts map[string]int
}

func newApprovalHistory() *approvalHistory {
	return &approvalHistory{counts: map[string]int{}}
}

func (h *approvalHistory) recentApprovals(tool string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[tool]
}

func (h *approvalHistory) recordApproval(tool string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[tool]++
}

// Gateway is the policy gateway: it scores risk, consults the configured
// allow/deny/ask rules, and selects a sandbox policy for dispatch.
//
// Grounded on vtcode-core/src/tools/registry/risk_scorer.rs for scoring and
// the teacher's internal/config.Settings.CheckPermission for rule matching.
type Gateway struct {
	Settings       *config.Settings
	Session        *config.SessionPermissions
	Trust          WorkspaceTrust
	ApproveThresh  Threshold
	history        *approvalHistory
	SandboxManager *sandbox.Manager
	DefaultSandbox sandbox.Policy
}

// NewGateway builds a Gateway over the given settings/session, defaulting
// the approval threshold to High (risk scores 51+ always require
// confirmation regardless of rule matches) and the sandbox policy to
// WorkspaceWrite over the cwd with network access.
func NewGateway(settings *config.Settings, session *config.SessionPermissions, trust WorkspaceTrust) *Gateway {
	return &Gateway{
		Settings:       settings,
		Session:        session,
		Trust:          trust,
		ApproveThresh:  RiskHigh,
		history:        newApprovalHistory(),
		SandboxManager: sandbox.NewManager(""),
		DefaultSandbox: sandbox.WorkspaceWrite(nil, true),
	}
}

// Verdict is the gateway's decision for one tool call.
type Verdict struct {
	Decision permission.Decision
	Risk     Score
	Sandbox  sandbox.Policy
}

// classifyContext builds a risk Context for toolName/args from static
// per-tool tables; callers with richer knowledge (e.g. the Bash tool
// itself, which knows whether its command is destructive) should build
// their own Context and call CalculateRisk directly.
func (g *Gateway) classifyContext(toolName string, args map[string]any) Context {
	ctx := Context{
		ToolName:        toolName,
		Source:          SourceInternal,
		WorkspaceTrust:  g.Trust,
		RecentApprovals: g.history.recentApprovals(toolName),
		IsDestructive:   destructiveTools[toolName],
		IsWrite:         writeTools[toolName],
		AccessesNetwork: networkTools[toolName],
	}
	if len(toolName) > 5 && toolName[:5] == "mcp__" {
		ctx.Source = SourceMCP
	}
	return ctx
}

// Evaluate decides whether a tool call may proceed, combining the
// configured allow/deny/ask rules with the computed risk level.
func (g *Gateway) Evaluate(toolName string, args map[string]any) Verdict {
	riskCtx := g.classifyContext(toolName, args)
	score := CalculateRisk(riskCtx)

	var ruleResult config.PermissionResult
	if g.Settings != nil {
		ruleResult = g.Settings.CheckPermission(toolName, args, g.Session)
	} else {
		ruleResult = config.PermissionAsk
	}

	decision := translateRuleResult(ruleResult)

	// A risk score at or above the configured threshold always demands
	// approval, even if the static rules would auto-allow — rules narrow
	// risk, they never widen it past the threshold.
	if decision == permission.Permit && RequiresJustification(score.Level, g.ApproveThresh) {
		decision = permission.Prompt
	}

	return Verdict{
		Decision: decision,
		Risk:     score,
		Sandbox:  g.sandboxFor(score.Level),
	}
}

// RecordApproval notes that the user approved a call for toolName, so
// subsequent risk calculations for that tool see a lower score (up to the
// 3-approval cap).
func (g *Gateway) RecordApproval(toolName string) {
	g.history.recordApproval(toolName)
}

// sandboxFor picks a stricter sandbox policy as risk increases: Low/Medium
// stay on the gateway default, High keeps the default with network access
// turned off, Critical gets the read-only policy (no filesystem writes, no
// network).
func (g *Gateway) sandboxFor(level RiskLevel) sandbox.Policy {
	switch level {
	case RiskCritical:
		return sandbox.ReadOnly()
	case RiskHigh:
		p := g.DefaultSandbox
		p.NetworkAccess = false
		return p
	default:
		return g.DefaultSandbox
	}
}

func translateRuleResult(r config.PermissionResult) permission.Decision {
	switch r {
	case config.PermissionAllow:
		return permission.Permit
	case config.PermissionDeny:
		return permission.Reject
	default:
		return permission.Prompt
	}
}

// AsChecker exposes the Gateway through the narrower Checker interface
// that internal/core.Loop already depends on.
func (g *Gateway) AsChecker() permission.Checker {
	return checkerAdapter{g: g}
}

type checkerAdapter struct {
	g *Gateway
}

func (c checkerAdapter) Check(name string, params map[string]any) permission.Decision {
	return c.g.Evaluate(name, params).Decision
}
