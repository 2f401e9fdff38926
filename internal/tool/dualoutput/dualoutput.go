// Package dualoutput splits a tool's result into two channels: a compact
// representation sent to the model (llm-content) and a richer one shown to
// the user in the terminal (ui-content). Most tools already produce both
// naturally via ui.ToolResult; this package adds per-tool-name summarizer
// dispatch for the handful of tools whose raw output is too large to send
// to the model unabridged.
//
// Grounded on vtcode-core/src/tools/registry/dual_output.rs
// (execute_tool_dual's per-tool match dispatch).
package dualoutput

import (
	"github.com/atlasagent/coreloop/internal/log"
	"github.com/atlasagent/coreloop/internal/tool/ui"
	"go.uber.org/zap"
)

// Split is the per-channel result of running a tool once.
type Split struct {
	ToolName   string
	LLMContent string
	UIContent  string
}

// Summarizer condenses a tool's raw UI-facing result into a shorter,
// model-facing LLMContent. It may use args (the tool's input parameters)
// as additional context, e.g. to report only the requested line range.
type Summarizer func(result ui.ToolResult, args map[string]any) (string, error)

var summarizers = map[string]Summarizer{}

// Register installs a summarizer for toolName. Call from an init() in the
// package that owns the tool, mirroring how the teacher's tool package
// self-registers into the tool registry.
func Register(toolName string, s Summarizer) {
	summarizers[toolName] = s
}

// Simple builds a Split with identical content on both channels — the
// default for any tool with no registered summarizer.
func Simple(toolName string, result ui.ToolResult, width int) Split {
	llm := result.FormatForLLM()
	return Split{ToolName: toolName, LLMContent: llm, UIContent: ui.RenderToolResult(result, width)}
}

// Execute runs the dual-output pipeline for one tool result: it resolves a
// registered summarizer for toolName and uses it to build the LLM channel,
// falling back to the tool's default FormatForLLM() output (still paired
// with the full UI rendering) if no summarizer is registered or the
// summarizer itself fails.
func Execute(toolName string, result ui.ToolResult, args map[string]any, width int) Split {
	uiContent := ui.RenderToolResult(result, width)

	summarize, ok := summarizers[toolName]
	if !ok {
		return Split{ToolName: toolName, LLMContent: result.FormatForLLM(), UIContent: uiContent}
	}

	llmContent, err := summarize(result, args)
	if err != nil {
		log.Logger().Warn("dual-output summarizer failed, falling back to raw content",
			zap.String("tool", toolName), zap.Error(err))
		return Split{ToolName: toolName, LLMContent: result.FormatForLLM(), UIContent: uiContent}
	}

	return Split{ToolName: toolName, LLMContent: llmContent, UIContent: uiContent}
}
