// Package invocation tracks the identity of a single tool call as it flows
// through detection, policy, dispatch, caching and event recording.
package invocation

import (
	"time"

	"github.com/google/uuid"
)

// ID uniquely identifies a tool invocation across sessions and processes.
type ID struct {
	u uuid.UUID
}

// New creates a fresh invocation ID.
func New() ID {
	return ID{u: uuid.New()}
}

// FromUUID wraps an existing UUID.
func FromUUID(u uuid.UUID) ID {
	return ID{u: u}
}

// Parse parses a hyphenated UUID string into an ID.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID{u: u}, nil
}

// String returns the hyphenated UUID form.
func (id ID) String() string {
	return id.u.String()
}

// Short returns an 8-character prefix suitable for compact logging.
func (id ID) Short() string {
	s := id.u.String()
	if len(s) < 8 {
		return s
	}
	return s[:8]
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.u == uuid.Nil
}

// Invocation is the complete context for one tool call.
type Invocation struct {
	ID        ID
	ToolName  string
	Args      map[string]any
	SessionID string
	// Attempt is 1-based; incremented on retry.
	Attempt   int
	ParentID  *ID
	CreatedAt time.Time
}

// New creates a top-level invocation (attempt 1, no parent).
func NewInvocation(toolName string, args map[string]any, sessionID string) Invocation {
	return Invocation{
		ID:        New(),
		ToolName:  toolName,
		Args:      args,
		SessionID: sessionID,
		Attempt:   1,
		CreatedAt: time.Now(),
	}
}

// Retry produces a fresh invocation for the same call: new id, attempt+1,
// same parent.
func (inv Invocation) Retry() Invocation {
	return Invocation{
		ID:        New(),
		ToolName:  inv.ToolName,
		Args:      inv.Args,
		SessionID: inv.SessionID,
		Attempt:   inv.Attempt + 1,
		ParentID:  inv.ParentID,
		CreatedAt: time.Now(),
	}
}

// Child produces a nested invocation (e.g. from a subagent), attempt 1,
// parent set to inv's own id.
func (inv Invocation) Child(toolName string, args map[string]any) Invocation {
	parent := inv.ID
	return Invocation{
		ID:        New(),
		ToolName:  toolName,
		Args:      args,
		SessionID: inv.SessionID,
		Attempt:   1,
		ParentID:  &parent,
		CreatedAt: time.Now(),
	}
}

// Elapsed returns the time since the invocation was created.
func (inv Invocation) Elapsed() time.Duration {
	return time.Since(inv.CreatedAt)
}

// IsRetry reports whether this invocation is a retry of an earlier attempt.
func (inv Invocation) IsRetry() bool {
	return inv.Attempt > 1
}

// IsNested reports whether this invocation has a parent (subagent/child call).
func (inv Invocation) IsNested() bool {
	return inv.ParentID != nil
}

// Builder assembles an Invocation with optional fields.
type Builder struct {
	toolName  string
	args      map[string]any
	sessionID string
	attempt   int
	parentID  *ID
	id        *ID
}

// NewBuilder starts building an invocation for the named tool.
func NewBuilder(toolName string) *Builder {
	return &Builder{toolName: toolName, attempt: 1}
}

// Args sets the tool arguments.
func (b *Builder) Args(args map[string]any) *Builder {
	b.args = args
	return b
}

// SessionID sets the owning session id.
func (b *Builder) SessionID(sessionID string) *Builder {
	b.sessionID = sessionID
	return b
}

// Attempt sets the attempt number (clamped to >=1).
func (b *Builder) Attempt(attempt int) *Builder {
	if attempt < 1 {
		attempt = 1
	}
	b.attempt = attempt
	return b
}

// ParentID sets the parent invocation id.
func (b *Builder) ParentID(parent ID) *Builder {
	b.parentID = &parent
	return b
}

// ID pins a specific invocation id, for reconstruction from storage.
func (b *Builder) ID(id ID) *Builder {
	b.id = &id
	return b
}

// Build finalizes the Invocation.
func (b *Builder) Build() Invocation {
	id := New()
	if b.id != nil {
		id = *b.id
	}
	return Invocation{
		ID:        id,
		ToolName:  b.toolName,
		Args:      b.args,
		SessionID: b.sessionID,
		Attempt:   b.attempt,
		ParentID:  b.parentID,
		CreatedAt: time.Now(),
	}
}
