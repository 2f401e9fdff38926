package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/atlasagent/coreloop/internal/batch"
	"github.com/atlasagent/coreloop/internal/log"
	"github.com/atlasagent/coreloop/internal/policy"
	"github.com/atlasagent/coreloop/internal/tool/dualoutput"
	"github.com/atlasagent/coreloop/internal/tool/ui"
)

// ToolMissing is the typed error behind the "unknown tool" result Execute
// returns when name resolves to neither a canonical registration nor an
// alias.
type ToolMissing struct {
	Name string
}

func (e *ToolMissing) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// Aliaser is implemented by tools reachable under more than one name (e.g.
// a tool kept available under a prior name after a rename). Aliases never
// shadow a canonical registration: Get checks canonical names first.
type Aliaser interface {
	Aliases() []string
}

// Descriptor summarizes a registered tool's dispatch-relevant properties.
// IsMutating and ParallelSafe are derived from the same static tables
// internal/policy and internal/batch already use to classify risk and
// concurrency safety, so a tool's classification never drifts between the
// registry and the rest of the dispatch pipeline.
type Descriptor struct {
	Name         string
	IsMutating   bool // changes filesystem/shell/network state
	ParallelSafe bool // may run concurrently with other parallel-safe calls
	LLMVisible   bool // advertised to the model via GetToolSchemas
}

// llmHiddenTools names tools that exist for internal dispatch only and are
// never advertised to the model. Empty for now: every built-in tool is
// currently LLM-visible.
var llmHiddenTools = map[string]bool{}

// Registry manages tool registration and execution
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool   // canonical lowercase name -> tool
	aliases map[string]string // lowercase alias -> canonical lowercase name
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		aliases: make(map[string]string),
	}
}

// Register adds a tool to the registry under its canonical name and any
// aliases it declares via Aliaser. Re-registering an already-registered
// canonical name or alias is rejected and logged rather than overwriting
// the existing entry, so a misbehaving plugin can't silently shadow a
// built-in tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := strings.ToLower(t.Name())
	if _, exists := r.tools[canonical]; exists {
		log.Logger().Warn("tool already registered, ignoring re-registration",
			zap.String("tool", t.Name()))
		return
	}
	r.tools[canonical] = t

	aliaser, ok := t.(Aliaser)
	if !ok {
		return
	}
	for _, alias := range aliaser.Aliases() {
		key := strings.ToLower(alias)
		if key == canonical {
			continue
		}
		if _, exists := r.aliases[key]; exists {
			log.Logger().Warn("tool alias already registered, ignoring",
				zap.String("alias", alias), zap.String("tool", t.Name()))
			continue
		}
		r.aliases[key] = canonical
	}
}

// Get retrieves a tool by name, resolving canonical registrations before
// aliases.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(name)
	if t, ok := r.tools[key]; ok {
		return t, true
	}
	if canonical, ok := r.aliases[key]; ok {
		t, ok := r.tools[canonical]
		return t, ok
	}
	return nil, false
}

// Describe returns dispatch metadata for a registered tool.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	t, ok := r.Get(name)
	if !ok {
		return Descriptor{}, false
	}
	canonical := t.Name()
	return Descriptor{
		Name:         canonical,
		IsMutating:   policy.IsMutatingTool(canonical),
		ParallelSafe: batch.IsParallelSafe(canonical),
		LLMVisible:   !llmHiddenTools[canonical],
	}, true
}

// List returns all registered canonical tool names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

// Execute runs a tool by name with the given parameters
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, cwd string) ui.ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return ui.NewErrorResult(name, (&ToolMissing{Name: name}).Error())
	}
	return t.Execute(ctx, params, cwd)
}

// ExecuteDual runs a tool and splits its result into LLM- and UI-facing
// content via internal/tool/dualoutput — callers that need to both render a
// result and feed it back to the model want different shapes of the same
// output (e.g. a table rendered for the TUI vs. its plain-text summary for
// the model's context).
func (r *Registry) ExecuteDual(ctx context.Context, name string, params map[string]any, cwd string, width int) dualoutput.Split {
	result := r.Execute(ctx, name, params, cwd)
	return dualoutput.Execute(name, result, params, width)
}

// DefaultRegistry is the global default tool registry
var DefaultRegistry = NewRegistry()

// Register adds a tool to the default registry
func Register(tool Tool) {
	DefaultRegistry.Register(tool)
}

// Get retrieves a tool from the default registry
func Get(name string) (Tool, bool) {
	return DefaultRegistry.Get(name)
}

// Describe returns dispatch metadata for a tool in the default registry
func Describe(name string) (Descriptor, bool) {
	return DefaultRegistry.Describe(name)
}

// Execute runs a tool from the default registry
func Execute(ctx context.Context, name string, params map[string]any, cwd string) ui.ToolResult {
	return DefaultRegistry.Execute(ctx, name, params, cwd)
}

// ExecuteDual runs a tool from the default registry and splits its result.
func ExecuteDual(ctx context.Context, name string, params map[string]any, cwd string, width int) dualoutput.Split {
	return DefaultRegistry.ExecuteDual(ctx, name, params, cwd, width)
}
