package core

import (
	"strings"
	"testing"

	"github.com/atlasagent/coreloop/internal/message"
	"github.com/atlasagent/coreloop/internal/tokenbudget"
)

func buildTurns(n int) []message.Message {
	var msgs []message.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs, message.UserMessage("question", nil))
		msgs = append(msgs, message.AssistantMessage("answer", "", nil))
	}
	return msgs
}

func TestCollapseOldestTurnsKeepsRecentIntact(t *testing.T) {
	msgs := buildTurns(20)

	collapsed, count := CollapseOldestTurns(msgs, 5)
	if count != 15 {
		t.Fatalf("expected 15 collapsed turns, got %d", count)
	}
	if !strings.Contains(collapsed[0].Content, "Summarized 15 earlier turns") {
		t.Fatalf("expected summary message to name 15 collapsed turns, got %q", collapsed[0].Content)
	}
	if collapsed[0].Role != message.RoleUser {
		t.Fatalf("expected summary message to be user-role, got %v", collapsed[0].Role)
	}

	// 1 summary message + 5 intact turns * 2 messages each
	if len(collapsed) != 1+10 {
		t.Fatalf("expected %d messages after collapse, got %d", 1+10, len(collapsed))
	}
}

func TestCollapseOldestTurnsNoopWhenWithinBudget(t *testing.T) {
	msgs := buildTurns(3)
	collapsed, count := CollapseOldestTurns(msgs, 5)
	if count != 0 {
		t.Fatalf("expected no turns collapsed, got %d", count)
	}
	if len(collapsed) != len(msgs) {
		t.Fatalf("expected messages unchanged, got %d want %d", len(collapsed), len(msgs))
	}
}

// TestCompactByBudgetAt92PercentUtilization exercises the scenario where
// utilization rises to 0.92 over a 20-turn conversation: the first 15 turns
// must collapse into one user-role summary message containing the literal
// substring "Summarized 15 earlier turns", with the last 5 turns intact.
func TestCompactByBudgetAt92PercentUtilization(t *testing.T) {
	budget := tokenbudget.NewManager(1000)
	budget.SetUsed(920)

	msgs := buildTurns(20)
	collapsed, did := CompactByBudget(budget, msgs, DefaultPreserveRecentTurns)
	if !did {
		t.Fatal("expected CompactByBudget to collapse at 92% utilization")
	}
	if !strings.Contains(collapsed[0].Content, "Summarized 15 earlier turns") {
		t.Fatalf("expected summary substring, got %q", collapsed[0].Content)
	}

	recentTurns := turnBoundaries(collapsed[1:])
	if len(recentTurns) != 5 {
		t.Fatalf("expected 5 recent turns intact, got %d", len(recentTurns))
	}
}

func TestCompactByBudgetBelowThresholdIsNoop(t *testing.T) {
	budget := tokenbudget.NewManager(1000)
	budget.SetUsed(500)

	msgs := buildTurns(20)
	collapsed, did := CompactByBudget(budget, msgs, DefaultPreserveRecentTurns)
	if did {
		t.Fatal("expected no compaction below the compact threshold")
	}
	if len(collapsed) != len(msgs) {
		t.Fatalf("expected messages unchanged, got %d want %d", len(collapsed), len(msgs))
	}
}
