package batch

import (
	"context"
	"testing"
)

func TestIsParallelSafe(t *testing.T) {
	cases := map[string]bool{
		"read_file":  true,
		"list_files": true,
		"grep_file":  true,
		"glob":       true,
		"Read":       true,
		"Write":      false,
		"Bash":       false,
		"edit_file":  false,
	}
	for name, want := range cases {
		if got := IsParallelSafe(name); got != want {
			t.Errorf("IsParallelSafe(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPartition(t *testing.T) {
	calls := []Call[string]{
		{Name: "read_file", Item: "a"},
		{Name: "grep_file", Item: "b"},
		{Name: "write_file", Item: "c"},
		{Name: "read_file", Item: "d"},
	}
	parallelBatch, sequentialBatch := Partition(calls)
	if len(parallelBatch) != 2 {
		t.Fatalf("expected 2 parallel-safe calls, got %d", len(parallelBatch))
	}
	if len(sequentialBatch) != 2 {
		t.Fatalf("expected 2 sequential calls, got %d", len(sequentialBatch))
	}
}

func TestExecutePartitionedPreservesOrder(t *testing.T) {
	calls := []Call[string]{
		{Name: "read_file", Item: "a"},
		{Name: "read_file", Item: "b"},
		{Name: "write_file", Item: "c"},
		{Name: "read_file", Item: "d"},
	}
	results := ExecutePartitioned(context.Background(), calls, 4, func(_ context.Context, item string) string {
		return item + "!"
	})
	want := []string{"a!", "b!", "c!", "d!"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("result[%d] = %q, want %q", i, results[i], want[i])
		}
	}
}

func TestExecuteBatchSequentialWhenUnsafe(t *testing.T) {
	calls := []Call[int]{{Name: "Bash", Item: 1}, {Name: "read_file", Item: 2}}
	results := ExecuteBatch(context.Background(), calls, 2, func(_ context.Context, item int) int {
		return item * 10
	})
	if results[0] != 10 || results[1] != 20 {
		t.Fatalf("unexpected results: %v", results)
	}
}
