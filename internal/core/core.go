// Package core provides a reusable agent loop that manages conversation state
// and orchestrates LLM interactions. It serves as the runtime for all agent types:
// subagents, the TUI, and custom agents.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/atlasagent/coreloop/internal/batch"
	"github.com/atlasagent/coreloop/internal/cache"
	"github.com/atlasagent/coreloop/internal/client"
	"github.com/atlasagent/coreloop/internal/curator"
	"github.com/atlasagent/coreloop/internal/detect"
	"github.com/atlasagent/coreloop/internal/events"
	"github.com/atlasagent/coreloop/internal/hooks"
	"github.com/atlasagent/coreloop/internal/log"
	"github.com/atlasagent/coreloop/internal/message"
	"github.com/atlasagent/coreloop/internal/permission"
	"github.com/atlasagent/coreloop/internal/policy"
	"github.com/atlasagent/coreloop/internal/system"
	"github.com/atlasagent/coreloop/internal/tokenbudget"
	"github.com/atlasagent/coreloop/internal/tool"
	"github.com/atlasagent/coreloop/internal/tool/dualoutput"
	"github.com/atlasagent/coreloop/internal/tool/invocation"
	"github.com/atlasagent/coreloop/internal/tool/schema"
	"github.com/atlasagent/coreloop/internal/tool/ui"
)

const (
	defaultMaxTurns         = 50
	defaultMaxParallelTools = 4
	defaultRenderWidth      = 100
)

// RunOptions controls the synchronous Run() loop.
type RunOptions struct {
	MaxTurns    int
	OnResponse  func(resp *message.CompletionResponse)
	OnToolStart func(tc message.ToolCall) bool
	OnToolDone  func(tc message.ToolCall, result message.ToolResult)
}

// Result is returned by Loop.Run() upon completion.
type Result struct {
	Content    string
	Messages   []message.Message
	Turns      int
	Tokens     client.TokenUsage
	StopReason string // "end_turn", "max_turns", "cancelled"
}

// --- Loop ---

// Loop is a reusable agent runtime that manages conversation state
// and orchestrates LLM interactions. It supports two execution models:
//
//	Synchronous: loop.Run(ctx, opts) — drives the full turn loop
//	Incremental: loop.Stream()/Collect()/AddResponse()/FilterToolCalls()/ExecTool() — for event-driven callers
type Loop struct {
	System     *system.System
	Client     *client.Client
	Tool       *tool.Set
	Permission permission.Checker
	Hooks      *hooks.Engine

	// SessionID identifies this conversation for invocation tracking and
	// event recording. Optional; an empty value just means invocations and
	// events carry an empty session id.
	SessionID string

	// Gateway, if set, additionally resolves a sandbox policy per tool call
	// (ExecTool consults it independent of Permission, which may or may not
	// be the same gateway exposed as a Checker).
	Gateway *policy.Gateway

	// Events, if set, receives the thread/turn/item lifecycle stream for
	// this run.
	Events *events.Recorder

	// Cache, if set, is consulted before running parallel-safe tools and
	// populated with their results.
	Cache *cache.Cache

	// Budget, if set, tracks context-window usage and drives compaction
	// (see CompactByBudget) once usage crosses the compact threshold.
	Budget *tokenbudget.Manager

	// Curator, if any field is non-zero, bounds the per-turn prompt/message
	// window instead of sending the full transcript and tool list.
	Curator curator.Options

	// MaxParallelTools caps concurrency for the parallel-safe prefix of a
	// turn's tool calls. Defaults to defaultMaxParallelTools.
	MaxParallelTools int

	// State (managed by the loop)
	messages       []message.Message
	textualCallSeq int
}

// --- High-level: synchronous agent loop ---

// Run drives the full conversation loop: stream -> response -> tools -> repeat.
// Stops on end_turn, max turns, or context cancellation.
func (l *Loop) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			l.recordTurnFailed("cancelled")
			return l.buildResult("cancelled", turn), ctx.Err()
		default:
		}

		if l.Events != nil {
			l.Events.TurnStarted()
		}

		// 1. Stream + collect response
		resp, err := Collect(ctx, l.Stream(ctx))
		if err != nil {
			l.recordTurnFailed(err.Error())
			return nil, err
		}

		// 2. Process response
		calls := l.AddResponse(resp)
		l.recordResponse(resp)
		if opts.OnResponse != nil {
			opts.OnResponse(resp)
		}

		// 3. No tool calls -> done
		if len(calls) == 0 {
			if l.Events != nil {
				l.Events.TurnCompleted()
			}
			r := l.buildResult("end_turn", turn+1)
			r.Content = resp.Content
			return r, nil
		}

		// 4. Filter through hooks
		allowed, blocked := l.FilterToolCalls(ctx, calls)
		for _, br := range blocked {
			l.AddToolResult(br)
		}

		// 5. Execute tools (parallel-safe prefix concurrently, rest in order)
		l.execToolCalls(ctx, allowed, opts)

		// 6. Compact the ledger once usage crosses the budget's threshold
		if l.Budget != nil {
			if compacted, did := CompactByBudget(l.Budget, l.messages, DefaultPreserveRecentTurns); did {
				l.messages = compacted
			}
		}

		if l.Events != nil {
			l.Events.TurnCompleted()
		}
	}

	return l.buildResult("max_turns", maxTurns), nil
}

// execToolCalls partitions calls into a parallel-safe prefix and a
// sequential remainder (internal/batch.ExecutePartitioned), executing the
// prefix concurrently under MaxParallelTools while preserving result order.
func (l *Loop) execToolCalls(ctx context.Context, calls []message.ToolCall, opts RunOptions) {
	if len(calls) == 0 {
		return
	}

	batchCalls := make([]batch.Call[message.ToolCall], len(calls))
	for i, tc := range calls {
		batchCalls[i] = batch.Call[message.ToolCall]{Item: tc, Name: tc.Name}
	}

	maxConcurrency := int64(l.MaxParallelTools)
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxParallelTools
	}

	results := batch.ExecutePartitioned(ctx, batchCalls, maxConcurrency,
		func(ctx context.Context, tc message.ToolCall) *message.ToolResult {
			if err := ctx.Err(); err != nil {
				return message.ErrorResult(tc, "cancelled: "+err.Error())
			}
			if opts.OnToolStart != nil && !opts.OnToolStart(tc) {
				return nil
			}
			return l.ExecTool(ctx, tc)
		})

	for i, tc := range calls {
		result := results[i]
		if result == nil {
			continue
		}
		l.AddToolResult(*result)
		if opts.OnToolDone != nil {
			opts.OnToolDone(tc, *result)
		}
	}
}

func (l *Loop) recordTurnFailed(msg string) {
	if l.Events != nil {
		l.Events.TurnFailed(msg)
	}
}

func (l *Loop) recordResponse(resp *message.CompletionResponse) {
	if l.Events == nil {
		return
	}
	if resp.Thinking != "" {
		l.Events.Reasoning(resp.Thinking)
	}
	if resp.Content != "" {
		l.Events.AgentMessage(resp.Content)
	}
}

func (l *Loop) buildResult(reason string, turns int) *Result {
	return &Result{
		Content:    l.lastAssistantContent(),
		Messages:   l.messages,
		Turns:      turns,
		Tokens:     l.Client.Tokens(),
		StopReason: reason,
	}
}

// lastAssistantContent returns the content of the most recent assistant message.
func (l *Loop) lastAssistantContent() string {
	for i := len(l.messages) - 1; i >= 0; i-- {
		msg := l.messages[i]
		if msg.Role == message.RoleAssistant && msg.Content != "" {
			return msg.Content
		}
	}
	return ""
}

// --- Low-level: incremental control (for TUI / event-driven callers) ---

// Stream starts an LLM stream and returns the chunk channel.
// It builds the system prompt and tool set from the loop's fields, curating
// them through Curator when any curation option is configured.
func (l *Loop) Stream(ctx context.Context) <-chan message.StreamChunk {
	sysPrompt := l.System.Prompt()
	tools := l.Tool.Tools()
	msgs := l.messages

	if l.curationEnabled() {
		opts := l.Curator
		opts.SystemPrompt = sysPrompt
		curated := curator.Curate(l.messages, tools, opts)
		sysPrompt, tools, msgs = curated.SystemPrompt, curated.Tools, curated.Messages
	}

	return l.Client.Stream(ctx, msgs, tools, sysPrompt)
}

func (l *Loop) curationEnabled() bool {
	return l.Curator.RecentTurns > 0 || l.Curator.ToolBudget > 0 || l.Curator.Ledger != "" || len(l.Curator.RecentErrors) > 0
}

// Collect synchronously drains a stream into a CompletionResponse.
func Collect(ctx context.Context, ch <-chan message.StreamChunk) (*message.CompletionResponse, error) {
	var response message.CompletionResponse

	for chunk := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch chunk.Type {
		case message.ChunkTypeText:
			response.Content += chunk.Text
		case message.ChunkTypeThinking:
			response.Thinking += chunk.Text
		case message.ChunkTypeToolStart:
			response.ToolCalls = append(response.ToolCalls, message.ToolCall{
				ID:   chunk.ToolID,
				Name: chunk.ToolName,
			})
		case message.ChunkTypeToolInput:
			if len(response.ToolCalls) > 0 {
				idx := len(response.ToolCalls) - 1
				response.ToolCalls[idx].Input += chunk.Text
			}
		case message.ChunkTypeDone:
			if chunk.Response != nil {
				return chunk.Response, nil
			}
			return &response, nil
		case message.ChunkTypeError:
			return nil, chunk.Error
		}
	}

	return &response, nil
}

// --- Message management ---

// Messages returns the current conversation messages.
func (l *Loop) Messages() []message.Message {
	return l.messages
}

// SetMessages replaces the conversation messages.
func (l *Loop) SetMessages(msgs []message.Message) {
	l.messages = msgs
}

// Tokens returns the accumulated token usage from the client.
func (l *Loop) Tokens() client.TokenUsage {
	if l.Client == nil {
		return client.TokenUsage{}
	}
	return l.Client.Tokens()
}

// AddUser appends a user message to the conversation.
func (l *Loop) AddUser(content string, images []message.ImageData) {
	l.messages = append(l.messages, message.UserMessage(content, images))
}

// AddResponse processes a CompletionResponse: appends the assistant message
// to the conversation, updates token counters, and returns the tool calls.
//
// Some providers/models emit a tool call as plain text in the response body
// instead of the structured tool-call chunks Collect expects (e.g. a local
// model replying with `functions.Read({"path": "x.go"})` rather than using
// the native tool-call protocol). When resp.ToolCalls comes back empty,
// AddResponse falls back to scanning resp.Content for one of these textual
// forms before giving up and treating the turn as a plain assistant reply.
func (l *Loop) AddResponse(resp *message.CompletionResponse) []message.ToolCall {
	if l.Client != nil {
		l.Client.AddUsage(resp.Usage)
	}
	if l.Budget != nil {
		l.Budget.Observe(resp.Content, resp.Usage.OutputTokens)
		l.Budget.SetUsed(l.Client.Tokens().InputTokens)
	}

	calls := resp.ToolCalls
	if len(calls) == 0 {
		if call, ok := detect.Detect(resp.Content); ok {
			if input, err := json.Marshal(call.Args); err == nil {
				l.textualCallSeq++
				calls = []message.ToolCall{{
					ID:    fmt.Sprintf("textual_%d", l.textualCallSeq),
					Name:  call.Name,
					Input: string(input),
				}}
			} else {
				log.Logger().Warn("failed to marshal detected textual tool-call args",
					zap.String("tool", call.Name), zap.Error(err))
			}
		}
	}

	l.messages = append(l.messages, message.AssistantMessage(resp.Content, resp.Thinking, calls))

	return calls
}

// AddToolResult appends a tool result message to the conversation.
func (l *Loop) AddToolResult(r message.ToolResult) {
	l.messages = append(l.messages, message.ToolResultMessage(r))
}

// --- Tool dispatch ---

// FilterToolCalls runs PreToolUse hooks, returning allowed tool calls and blocked results.
func (l *Loop) FilterToolCalls(ctx context.Context, calls []message.ToolCall) (
	allowed []message.ToolCall, blocked []message.ToolResult,
) {
	if l.Hooks == nil {
		return calls, nil
	}

	for _, tc := range calls {
		params, _ := message.ParseToolInput(tc.Input)
		outcome := l.Hooks.Execute(ctx, hooks.PreToolUse, hooks.HookInput{
			ToolName:  tc.Name,
			ToolInput: params,
			ToolUseID: tc.ID,
		})

		if outcome.ShouldBlock {
			blocked = append(blocked, *message.ErrorResult(tc, "Blocked by hook: "+outcome.BlockReason))
			continue
		}

		if outcome.UpdatedInput != nil {
			if updated, err := json.Marshal(outcome.UpdatedInput); err == nil {
				tc.Input = string(updated)
			}
		}
		allowed = append(allowed, tc)
	}
	return allowed, blocked
}

// ExecTool executes a single tool call, consulting the Permission checker.
// Rejected tools return an error result; Prompt decisions are auto-approved.
func (l *Loop) ExecTool(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	params, err := message.ParseToolInput(tc.Input)
	if err != nil {
		return message.ErrorResult(tc, fmt.Sprintf("Error parsing tool input: %v", err))
	}

	decision := permission.Permit
	if l.Permission != nil {
		decision = l.Permission.Check(tc.Name, params)
	}

	if decision == permission.Reject {
		return message.ErrorResult(tc, fmt.Sprintf("Tool %s is not permitted in this mode", tc.Name))
	}

	// The gateway's own decision, when present, narrows further (it can only
	// turn an allow into an ask, never the reverse — see policy.Gateway).
	if l.Gateway != nil {
		verdict := l.Gateway.Evaluate(tc.Name, params)
		if verdict.Decision == permission.Reject {
			return message.ErrorResult(tc, fmt.Sprintf("Tool %s is not permitted in this mode", tc.Name))
		}
		params["_sandboxPolicy"] = verdict.Sandbox
	}

	// Permit and Prompt both execute the tool (non-interactive callers auto-approve)
	return l.runTool(ctx, tc, params)
}

// runTool validates args against the tool's declared schema, builds an
// Invocation identity for it (threading a parent id for Task-spawned
// subagent calls through params["_parentInvocationID"]), consults the
// result cache for parallel-safe tools, executes, and splits the result
// into LLM/UI channels before recording a command item event.
func (l *Loop) runTool(ctx context.Context, tc message.ToolCall, params map[string]any) *message.ToolResult {
	cwd := ""
	if l.System != nil {
		cwd = l.System.Cwd
	}

	t, ok := tool.Get(tc.Name)
	if !ok {
		return message.ErrorResult(tc, fmt.Sprintf("Unknown tool: %s", tc.Name))
	}

	if err := l.validateToolArgs(tc.Name, params); err != nil {
		return message.ErrorResult(tc, err.Error())
	}

	// Fingerprint before the per-call invocation id is added to params, so
	// identical calls share a cache key.
	key := cache.Fingerprint(tc.Name, params, filePathsFromParams(params)...)

	inv := invocation.NewInvocation(tc.Name, params, l.SessionID)
	params["_parentInvocationID"] = inv.ID.String()

	var active events.ActiveCommand
	if l.Events != nil {
		active = l.Events.CommandStarted(tc.Name)
	}

	cacheable := l.Cache != nil && batch.IsParallelSafe(tc.Name)
	if cacheable {
		if cached, ok := l.Cache.Get(key); ok {
			if toolResult, ok := cached.(ui.ToolResult); ok {
				return l.finishTool(tc, inv, toolResult, active)
			}
		}
	}

	var toolResult ui.ToolResult
	if pat, ok := t.(tool.PermissionAwareTool); ok && pat.RequiresPermission() {
		toolResult = pat.ExecuteApproved(ctx, params, cwd)
	} else {
		toolResult = t.Execute(ctx, params, cwd)
	}

	if cacheable && toolResult.Success {
		l.Cache.Set(key, toolResult)
	}

	return l.finishTool(tc, inv, toolResult, active)
}

// finishTool runs the dual-output split, logs and records the completed
// item event, and builds the message-facing ToolResult.
func (l *Loop) finishTool(tc message.ToolCall, inv invocation.Invocation, toolResult ui.ToolResult, active events.ActiveCommand) *message.ToolResult {
	split := dualoutput.Execute(tc.Name, toolResult, inv.Args, defaultRenderWidth)

	log.Logger().Debug("Tool executed",
		zap.String("tool", tc.Name),
		zap.String("invocation", inv.ID.Short()),
		zap.Bool("success", toolResult.Success),
	)

	if l.Events != nil {
		status := events.CommandCompleted
		if !toolResult.Success {
			status = events.CommandFailed
		}
		l.Events.CommandFinished(active, status, nil, split.LLMContent)
	}

	return &message.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    split.LLMContent,
		IsError:    !toolResult.Success,
	}
}

// validateToolArgs checks params against toolName's declared JSON Schema
// (from tool.GetToolSchemas), if any. Tools with no declared schema, or
// that aren't found in the schema list at all (e.g. internal-only tools),
// pass unconditionally.
func (l *Loop) validateToolArgs(toolName string, params map[string]any) error {
	for _, t := range tool.GetToolSchemas() {
		if t.Name == toolName {
			return schema.Validate(toolName, t.Parameters, params)
		}
	}
	return nil
}

// filePathsFromParams extracts file-path-like arguments so cache.Fingerprint
// can factor file mtime/size into the cache key for read tools.
func filePathsFromParams(params map[string]any) []string {
	var paths []string
	for _, k := range [...]string{"file_path", "path"} {
		if p, ok := params[k].(string); ok && p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// --- Compaction ---

// Compact summarizes a conversation to reduce context window usage.
// It sends the conversation to the LLM with a compact prompt and returns
// the summary text, the original message count, and any error.
func Compact(ctx context.Context, c *client.Client,
	msgs []message.Message, focus string) (summary string, count int, err error) {
	count = len(msgs)

	conversationText := message.BuildConversationText(msgs)

	if focus != "" {
		conversationText += fmt.Sprintf("\n\n**Important**: Focus the summary on: %s", focus)
	}

	response, err := c.Complete(ctx,
		system.CompactPrompt(),
		[]message.Message{message.UserMessage(conversationText, nil)},
		2048,
	)
	if err != nil {
		return "", count, fmt.Errorf("failed to generate summary: %w", err)
	}

	return strings.TrimSpace(response.Content), count, nil
}
