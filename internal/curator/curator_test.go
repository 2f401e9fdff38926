package curator

import (
	"testing"

	"github.com/atlasagent/coreloop/internal/message"
	"github.com/atlasagent/coreloop/internal/provider"
)

func TestCurateTrimsToRecentWindow(t *testing.T) {
	var msgs []message.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, message.UserMessage("hello", nil))
	}
	out := Curate(msgs, nil, Options{RecentTurns: 5})
	if len(out.Messages) != 5 {
		t.Fatalf("expected 5 trailing messages, got %d", len(out.Messages))
	}
}

func TestCurateKeepsAllWhenUnderBudget(t *testing.T) {
	msgs := []message.Message{message.UserMessage("hi", nil)}
	out := Curate(msgs, nil, Options{})
	if len(out.Messages) != 1 {
		t.Fatalf("expected 1 message kept, got %d", len(out.Messages))
	}
}

func TestCurateEmbedsLedgerAndErrors(t *testing.T) {
	out := Curate(nil, nil, Options{
		SystemPrompt: "base",
		Ledger:       "summary text",
		RecentErrors: []string{"Bash: command not found"},
	})
	if !contains(out.SystemPrompt, "<ledger>") || !contains(out.SystemPrompt, "summary text") {
		t.Fatalf("expected ledger embedded in prompt, got %q", out.SystemPrompt)
	}
	if !contains(out.SystemPrompt, "command not found") {
		t.Fatalf("expected recent error embedded in prompt, got %q", out.SystemPrompt)
	}
}

func TestTopKRanksReadOnlyToolsFirst(t *testing.T) {
	tools := []provider.Tool{
		{Name: "Bash"},
		{Name: "Read"},
		{Name: "WebFetch"},
		{Name: "Grep"},
	}
	top := TopK(tools, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(top))
	}
	if top[0].Name != "Read" || top[1].Name != "Grep" {
		t.Fatalf("expected Read/Grep ranked first, got %v", top)
	}
}

func TestTopKNoopWhenBudgetCoversAll(t *testing.T) {
	tools := []provider.Tool{{Name: "Read"}, {Name: "Write"}}
	if out := TopK(tools, 0); len(out) != 2 {
		t.Fatalf("expected all tools kept when budget<=0, got %d", len(out))
	}
	if out := TopK(tools, 10); len(out) != 2 {
		t.Fatalf("expected all tools kept when budget exceeds count, got %d", len(out))
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
