package dualoutput

import (
	"errors"
	"testing"

	"github.com/atlasagent/coreloop/internal/tool/ui"
)

func TestExecuteFallsBackWithNoSummarizer(t *testing.T) {
	result := ui.ToolResult{Success: true, Output: "hello"}
	split := Execute("Unregistered", result, nil, 80)
	if split.LLMContent != result.FormatForLLM() {
		t.Fatalf("expected fallback LLM content to equal FormatForLLM()")
	}
}

func TestExecuteUsesRegisteredSummarizer(t *testing.T) {
	Register("TestTool", func(result ui.ToolResult, args map[string]any) (string, error) {
		return "summarized", nil
	})
	result := ui.ToolResult{Success: true, Output: "a very long raw output"}
	split := Execute("TestTool", result, nil, 80)
	if split.LLMContent != "summarized" {
		t.Fatalf("expected summarized LLM content, got %q", split.LLMContent)
	}
}

func TestExecuteFallsBackOnSummarizerError(t *testing.T) {
	Register("FailingTool", func(result ui.ToolResult, args map[string]any) (string, error) {
		return "", errors.New("boom")
	})
	result := ui.ToolResult{Success: true, Output: "raw"}
	split := Execute("FailingTool", result, nil, 80)
	if split.LLMContent != result.FormatForLLM() {
		t.Fatalf("expected fallback content on summarizer failure")
	}
}
