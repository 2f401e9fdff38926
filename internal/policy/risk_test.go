package policy

import "testing"

func TestRiskLevelOrdering(t *testing.T) {
	if !(RiskLow < RiskMedium && RiskMedium < RiskHigh && RiskHigh < RiskCritical) {
		t.Fatalf("expected RiskLow < RiskMedium < RiskHigh < RiskCritical")
	}
}

func TestCalculateRiskReadOnly(t *testing.T) {
	score := CalculateRisk(Context{ToolName: "Read", Source: SourceInternal, WorkspaceTrust: TrustTrusted})
	if score.Level != RiskLow {
		t.Fatalf("expected Read to be RiskLow, got %v (%f)", score.Level, score.Raw)
	}
}

func TestCalculateRiskDestructiveBash(t *testing.T) {
	ctx := Context{ToolName: "Bash", Source: SourceInternal, WorkspaceTrust: TrustUntrusted}.
		AsDestructive().AsWrite()
	score := CalculateRisk(ctx)
	if score.Level != RiskCritical {
		t.Fatalf("expected destructive untrusted Bash to be RiskCritical, got %v (%f)", score.Level, score.Raw)
	}
}

func TestCalculateRiskSourceMultiplier(t *testing.T) {
	internal := CalculateRisk(Context{ToolName: "mcp__foo__bar", Source: SourceInternal, WorkspaceTrust: TrustUntrusted})
	mcp := CalculateRisk(Context{ToolName: "mcp__foo__bar", Source: SourceMCP, WorkspaceTrust: TrustUntrusted})
	if mcp.Raw <= internal.Raw {
		t.Fatalf("expected MCP source score (%f) > internal source score (%f)", mcp.Raw, internal.Raw)
	}
}

func TestCalculateRiskApprovalReduction(t *testing.T) {
	noHistory := CalculateRisk(Context{ToolName: "Write", Source: SourceInternal, WorkspaceTrust: TrustUntrusted, RecentApprovals: 0, IsWrite: true})
	withHistory := CalculateRisk(Context{ToolName: "Write", Source: SourceInternal, WorkspaceTrust: TrustUntrusted, RecentApprovals: 5, IsWrite: true})
	if withHistory.Raw >= noHistory.Raw {
		t.Fatalf("expected approval history to reduce score: %f vs %f", withHistory.Raw, noHistory.Raw)
	}
}

func TestRequiresJustification(t *testing.T) {
	if !RequiresJustification(RiskHigh, RiskMedium) {
		t.Fatalf("expected High >= Medium to require justification")
	}
	if RequiresJustification(RiskLow, RiskHigh) {
		t.Fatalf("expected Low < High to not require justification")
	}
}
