// Package events records structured thread/turn/item lifecycle events for a
// run, mirroring the teacher's zap-based logging idiom but producing a
// replayable, sink-able event stream a TUI or test harness can subscribe to.
//
// Grounded on vtcode-core/src/core/agent/events.rs (ExecEventRecorder) for
// the item-lifecycle shape, and src/agent/runloop/mcp_events.rs (McpEvent)
// for the MCP call status/duration tracking.
package events

import (
	"sync"
	"time"
)

// Kind identifies the shape of an Event's payload.
type Kind int

const (
	KindThreadStarted Kind = iota
	KindTurnStarted
	KindTurnCompleted
	KindTurnFailed
	KindItemStarted
	KindItemUpdated
	KindItemCompleted
)

func (k Kind) String() string {
	switch k {
	case KindThreadStarted:
		return "thread_started"
	case KindTurnStarted:
		return "turn_started"
	case KindTurnCompleted:
		return "turn_completed"
	case KindTurnFailed:
		return "turn_failed"
	case KindItemStarted:
		return "item_started"
	case KindItemUpdated:
		return "item_updated"
	case KindItemCompleted:
		return "item_completed"
	default:
		return "unknown"
	}
}

// ItemKind identifies the shape of an Item's details.
type ItemKind int

const (
	ItemAgentMessage ItemKind = iota
	ItemReasoning
	ItemCommandExecution
	ItemMCPCall
	ItemFileChange
	ItemError
)

// CommandStatus mirrors the original's CommandExecutionStatus.
type CommandStatus int

const (
	CommandInProgress CommandStatus = iota
	CommandCompleted
	CommandFailed
)

// MCPStatus mirrors mcp_events.rs's McpEventStatus.
type MCPStatus int

const (
	MCPPending MCPStatus = iota
	MCPSuccess
	MCPFailure
	MCPCancelled
)

func (s MCPStatus) Symbol() string {
	switch s {
	case MCPSuccess:
		return "✓"
	case MCPFailure:
		return "✗"
	case MCPCancelled:
		return "✕"
	default:
		return "~"
	}
}

// Item is a single thread item: an agent message, a reasoning block, a
// command execution, an MCP call, a file change, or an error.
type Item struct {
	ID      string
	Kind    ItemKind
	Text    string
	Command string
	Output  string
	ExitCode *int
	Status   CommandStatus
	Provider string
	Method   string
	DurationMS int64
	MCPStatus  MCPStatus
	Path       string
}

// Event is one entry in the recorded stream.
type Event struct {
	Kind    Kind
	ThreadID string
	Message  string
	Item     Item
	At       time.Time
}

// Sink receives each event as it is recorded. Implementations must not block
// for long — Recorder holds its lock while calling sink.
type Sink func(Event)

type streamingMessage struct {
	id     string
	buffer string
}

// ActiveCommand is a handle returned by CommandStarted, passed back to
// CommandFinished to close out the same item ID.
type ActiveCommand struct {
	id      string
	command string
}

// ActiveMCPCall is the MCP analogue of ActiveCommand.
type ActiveMCPCall struct {
	id       string
	provider string
	method   string
	started  time.Time
}

// Recorder accumulates events for one run/turn sequence and optionally
// relays each to a Sink as it's recorded.
type Recorder struct {
	mu              sync.Mutex
	threadID        string
	events          []Event
	nextItemIndex   uint64
	sink            Sink
	activeMessage   *streamingMessage
	metrics         *Metrics
}

// New creates a Recorder and immediately records a ThreadStarted event.
func New(threadID string, sink Sink) *Recorder {
	r := &Recorder{threadID: threadID, sink: sink}
	r.record(Event{Kind: KindThreadStarted, ThreadID: threadID})
	return r
}

// WithMetrics attaches Prometheus instrumentation; nil disables it.
func (r *Recorder) WithMetrics(m *Metrics) *Recorder {
	r.metrics = m
	return r
}

func (r *Recorder) record(evt Event) {
	evt.ThreadID = r.threadID
	r.events = append(r.events, evt)
	if r.sink != nil {
		r.sink(evt)
	}
}

func (r *Recorder) nextItemID() string {
	id := r.nextItemIndex
	r.nextItemIndex++
	return "item_" + itoa(id)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// TurnStarted records the start of a new turn.
func (r *Recorder) TurnStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Event{Kind: KindTurnStarted})
}

// TurnCompleted records a turn's successful completion.
func (r *Recorder) TurnCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Event{Kind: KindTurnCompleted})
}

// TurnFailed records a turn failing with message.
func (r *Recorder) TurnFailed(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Event{Kind: KindTurnFailed, Message: message})
}

// AgentMessage records a complete, non-streamed assistant message.
func (r *Recorder) AgentMessage(text string) {
	if isBlank(text) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item := Item{ID: r.nextItemID(), Kind: ItemAgentMessage, Text: text}
	r.record(Event{Kind: KindItemCompleted, Item: item})
}

// AgentMessageStreamUpdate appends to (or starts) the active streamed
// assistant message, emitting ItemStarted on the first call and
// ItemUpdated on subsequent ones. Returns false for blank text (no-op).
func (r *Recorder) AgentMessageStreamUpdate(text string) bool {
	if isBlank(text) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeMessage != nil {
		r.activeMessage.buffer = text
		item := Item{ID: r.activeMessage.id, Kind: ItemAgentMessage, Text: text}
		r.record(Event{Kind: KindItemUpdated, Item: item})
		return true
	}

	id := r.nextItemID()
	item := Item{ID: id, Kind: ItemAgentMessage, Text: text}
	r.record(Event{Kind: KindItemStarted, Item: item})
	r.activeMessage = &streamingMessage{id: id, buffer: text}
	return true
}

// AgentMessageStreamComplete flushes the active streamed message, if any,
// as a final ItemCompleted event.
func (r *Recorder) AgentMessageStreamComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushActiveMessage()
}

func (r *Recorder) flushActiveMessage() {
	if r.activeMessage == nil {
		return
	}
	item := Item{ID: r.activeMessage.id, Kind: ItemAgentMessage, Text: r.activeMessage.buffer}
	r.record(Event{Kind: KindItemCompleted, Item: item})
	r.activeMessage = nil
}

// Reasoning records a model reasoning/thinking block.
func (r *Recorder) Reasoning(text string) {
	if isBlank(text) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item := Item{ID: r.nextItemID(), Kind: ItemReasoning, Text: text}
	r.record(Event{Kind: KindItemCompleted, Item: item})
}

// CommandStarted records a command beginning execution and returns a handle
// to close it out via CommandFinished.
func (r *Recorder) CommandStarted(command string) ActiveCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextItemID()
	item := Item{ID: id, Kind: ItemCommandExecution, Command: command, Status: CommandInProgress}
	r.record(Event{Kind: KindItemStarted, Item: item})
	return ActiveCommand{id: id, command: command}
}

// CommandFinished closes out a command started via CommandStarted.
func (r *Recorder) CommandFinished(handle ActiveCommand, status CommandStatus, exitCode *int, output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := Item{
		ID:       handle.id,
		Kind:     ItemCommandExecution,
		Command:  handle.command,
		Output:   output,
		ExitCode: exitCode,
		Status:   status,
	}
	r.record(Event{Kind: KindItemCompleted, Item: item})
	if r.metrics != nil {
		r.metrics.ObserveCommand(status)
	}
}

// MCPCallStarted records an MCP tool call beginning.
func (r *Recorder) MCPCallStarted(provider, method string) ActiveMCPCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextItemID()
	item := Item{ID: id, Kind: ItemMCPCall, Provider: provider, Method: method, MCPStatus: MCPPending}
	r.record(Event{Kind: KindItemStarted, Item: item})
	return ActiveMCPCall{id: id, provider: provider, method: method, started: time.Now()}
}

// MCPCallFinished closes out an MCP call started via MCPCallStarted.
func (r *Recorder) MCPCallFinished(handle ActiveMCPCall, status MCPStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	item := Item{
		ID:         handle.id,
		Kind:       ItemMCPCall,
		Provider:   handle.provider,
		Method:     handle.method,
		MCPStatus:  status,
		Text:       msg,
		DurationMS: time.Since(handle.started).Milliseconds(),
	}
	r.record(Event{Kind: KindItemCompleted, Item: item})
	if r.metrics != nil {
		r.metrics.ObserveMCPCall(handle.provider, status, time.Since(handle.started))
	}
}

// FileChangeCompleted records a single completed file modification.
func (r *Recorder) FileChangeCompleted(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := Item{ID: r.nextItemID(), Kind: ItemFileChange, Path: path}
	r.record(Event{Kind: KindItemCompleted, Item: item})
}

// Warning records a non-fatal error/warning item.
func (r *Recorder) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := Item{ID: r.nextItemID(), Kind: ItemError, Text: message}
	r.record(Event{Kind: KindItemCompleted, Item: item})
}

// Events returns the accumulated event stream, flushing any still-active
// streamed message first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushActiveMessage()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func isBlank(s string) bool {
	for _, c := range s {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}
