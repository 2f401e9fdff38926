// Package batch partitions a set of tool calls into a parallel-safe subset
// and a sequential remainder, then executes the parallel subset under a
// concurrency cap while preserving submission order in the result slice.
//
// Grounded on vtcode-core/src/tools/parallel_tool_batch.rs and the
// teacher's internal/tui/toolexec.go (executeToolsParallel).
package batch

import (
	"context"
	"strings"

	"golang.org/x/sync/semaphore"
)

// parallelSafePrefixes names tool-name prefixes that never mutate state and
// are therefore safe to run concurrently with one another.
var parallelSafePrefixes = []string{"read_", "list_", "get_", "grep_", "search_", "find_"}

// parallelSafeTools names additional specific tools known to be read-only.
var parallelSafeTools = map[string]bool{
	"agent_info": true,
	"glob":       true,
	"fetch_url":  true,
	"web_search": true,
	// engine tool names (PascalCase), kept alongside the snake_case set
	// above since both naming conventions appear across the registry.
	"Read": true, "Glob": true, "Grep": true, "LSP": true,
	"WebFetch": true, "WebSearch": true, "TaskOutput": true,
}

// IsParallelSafe reports whether a tool may run concurrently with other
// parallel-safe tools.
func IsParallelSafe(name string) bool {
	if parallelSafeTools[name] {
		return true
	}
	lower := strings.ToLower(name)
	for _, prefix := range parallelSafePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Call is one item submitted to a batch; T is caller-defined (typically a
// message.ToolCall or similar).
type Call[T any] struct {
	Item T
	Name string
}

// AllParallelSafe reports whether every call in calls is parallel-safe.
func AllParallelSafe[T any](calls []Call[T]) bool {
	for _, c := range calls {
		if !IsParallelSafe(c.Name) {
			return false
		}
	}
	return true
}

// Partition splits calls into a leading parallel-safe run and the
// sequential remainder, matching parallel_tool_batch.rs::partition: only
// the safe calls preceding the first unsafe call are parallelized, so a
// write sandwiched between two reads still forces ordering around it.
func Partition[T any](calls []Call[T]) (parallelBatch, sequentialBatch []Call[T]) {
	for i, c := range calls {
		if !IsParallelSafe(c.Name) {
			return calls[:i], calls[i:]
		}
	}
	return calls, nil
}

// Executor runs a single call and returns its result.
type Executor[T, R any] func(ctx context.Context, call T) R

// ExecuteParallel runs calls concurrently, capped at maxConcurrency
// in-flight at once, and returns results in the same order as calls.
func ExecuteParallel[T, R any](ctx context.Context, calls []Call[T], maxConcurrency int64, exec Executor[T, R]) []R {
	results := make([]R, len(calls))
	if len(calls) == 0 {
		return results
	}
	if maxConcurrency <= 0 {
		maxConcurrency = int64(len(calls))
	}

	sem := semaphore.NewWeighted(maxConcurrency)
	done := make(chan struct{}, len(calls))

	for i, c := range calls {
		i, c := i, c
		if err := sem.Acquire(ctx, 1); err != nil {
			// context cancelled; remaining results stay zero-valued
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			results[i] = exec(ctx, c.Item)
		}()
	}

	for range calls {
		<-done
	}

	return results
}

// ExecuteSequential runs calls one at a time, in order.
func ExecuteSequential[T, R any](ctx context.Context, calls []Call[T], exec Executor[T, R]) []R {
	results := make([]R, len(calls))
	for i, c := range calls {
		results[i] = exec(ctx, c.Item)
	}
	return results
}

// ExecuteBatch runs calls either fully in parallel (when every call is
// parallel-safe) or fully sequentially.
func ExecuteBatch[T, R any](ctx context.Context, calls []Call[T], maxConcurrency int64, exec Executor[T, R]) []R {
	if AllParallelSafe(calls) {
		return ExecuteParallel(ctx, calls, maxConcurrency, exec)
	}
	return ExecuteSequential(ctx, calls, exec)
}

// ExecutePartitioned runs the parallel-safe prefix concurrently, then runs
// the sequential remainder one at a time, preserving overall order.
func ExecutePartitioned[T, R any](ctx context.Context, calls []Call[T], maxConcurrency int64, exec Executor[T, R]) []R {
	parallelBatch, sequentialBatch := Partition(calls)

	results := make([]R, 0, len(calls))
	results = append(results, ExecuteParallel(ctx, parallelBatch, maxConcurrency, exec)...)
	results = append(results, ExecuteSequential(ctx, sequentialBatch, exec)...)
	return results
}
