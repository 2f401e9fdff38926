package tokenbudget

import "testing"

func TestManagerNeedsCompaction(t *testing.T) {
	m := NewManager(1000)
	m.SetUsed(960)
	if !m.NeedsCompaction() {
		t.Fatalf("expected compaction needed at 96%% usage")
	}
	m.SetUsed(100)
	if m.NeedsCompaction() {
		t.Fatalf("expected no compaction needed at 10%% usage")
	}
}

func TestManagerTruncateKeepsWithinBudget(t *testing.T) {
	m := NewManager(DefaultMaxContextTokens)
	long := make([]byte, 200_000)
	for i := range long {
		long[i] = 'a'
	}
	out := m.Truncate(string(long), 1000)
	if m.EstimateTokens(out) > 1000 {
		t.Fatalf("expected truncated output within budget, got %d tokens", m.EstimateTokens(out))
	}
	if out == string(long) {
		t.Fatalf("expected truncation to actually shrink the text")
	}
}

func TestManagerTruncateNoopWhenSmall(t *testing.T) {
	m := NewManager(DefaultMaxContextTokens)
	small := "hello world"
	if got := m.Truncate(small, 1000); got != small {
		t.Fatalf("expected no truncation for small text, got %q", got)
	}
}

func TestClassifyContent(t *testing.T) {
	if ClassifyContent(`{"a": 1}`) != ClassJSONToolOut {
		t.Error("expected JSON content classified as json_tool_output")
	}
	if ClassifyContent("func main() { fmt.Println(a[0]) }") != ClassCode {
		t.Error("expected code-like content classified as code")
	}
	if ClassifyContent("this is a plain english sentence") != ClassConversation {
		t.Error("expected prose classified as conversation")
	}
}
