package invocation

import "testing"

func TestIDDisplay(t *testing.T) {
	id := New()
	s := id.String()
	if len(s) != 36 {
		t.Fatalf("expected hyphenated UUID length 36, got %d (%s)", len(s), s)
	}
}

func TestIDShort(t *testing.T) {
	id := New()
	if got := len(id.Short()); got != 8 {
		t.Fatalf("expected short id length 8, got %d", got)
	}
}

func TestIDParseRoundtrip(t *testing.T) {
	id := New()
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed != id {
		t.Fatalf("round-tripped id mismatch")
	}
}

func TestNewInvocation(t *testing.T) {
	inv := NewInvocation("read_file", map[string]any{"path": "/tmp/test"}, "session-123")
	if inv.ToolName != "read_file" {
		t.Fatalf("tool name mismatch: %s", inv.ToolName)
	}
	if inv.Attempt != 1 {
		t.Fatalf("expected attempt 1, got %d", inv.Attempt)
	}
	if inv.ParentID != nil {
		t.Fatalf("expected no parent id")
	}
}

func TestInvocationRetry(t *testing.T) {
	inv := NewInvocation("grep_file", map[string]any{"pattern": "TODO"}, "session-456")
	retry := inv.Retry()

	if retry.ID == inv.ID {
		t.Fatalf("retry should have a fresh id")
	}
	if retry.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", retry.Attempt)
	}
	if retry.ToolName != inv.ToolName {
		t.Fatalf("tool name should be preserved")
	}
}

func TestInvocationChild(t *testing.T) {
	parent := NewInvocation("spawn_subagent", nil, "session-789")
	child := parent.Child("read_file", map[string]any{"path": "/src/main.go"})

	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Fatalf("expected child parent id to equal parent.ID")
	}
	if child.SessionID != parent.SessionID {
		t.Fatalf("expected child to inherit session id")
	}
	if child.Attempt != 1 {
		t.Fatalf("expected attempt 1 for child")
	}
	if !child.IsNested() {
		t.Fatalf("expected child.IsNested() == true")
	}
}

func TestBuilder(t *testing.T) {
	inv := NewBuilder("write_file").
		Args(map[string]any{"path": "/out.txt", "content": "hello"}).
		SessionID("builder-session").
		Attempt(3).
		Build()

	if inv.ToolName != "write_file" {
		t.Fatalf("tool name mismatch")
	}
	if inv.SessionID != "builder-session" {
		t.Fatalf("session id mismatch")
	}
	if inv.Attempt != 3 {
		t.Fatalf("expected attempt 3, got %d", inv.Attempt)
	}
}

func TestBuilderWithParent(t *testing.T) {
	parentID := New()
	inv := NewBuilder("nested_tool").
		SessionID("test").
		ParentID(parentID).
		Build()

	if inv.ParentID == nil || *inv.ParentID != parentID {
		t.Fatalf("expected parent id to be set")
	}
	if !inv.IsNested() {
		t.Fatalf("expected IsNested() == true")
	}
}
