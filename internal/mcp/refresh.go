package mcp

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlasagent/coreloop/internal/log"
	"github.com/atlasagent/coreloop/internal/mcp/circuit"
)

// refreshAttempts mirrors mcp_facade.rs::refresh_mcp_tools's fixed retry
// count.
const refreshAttempts = 3

// breakers tracks one circuit breaker per server name, since a flaky
// server shouldn't open the breaker for the others.
var (
	breakersMu sync.Mutex
	breakers   = map[string]*circuit.Breaker{}
)

func breakerFor(name string) *circuit.Breaker {
	breakersMu.Lock()
	defer breakersMu.Unlock()
	b, ok := breakers[name]
	if !ok {
		b = circuit.New(3, 30*time.Second)
		breakers[name] = b
	}
	return b
}

// RefreshTools reconnects to name and re-fetches its tool list, retrying
// with capped exponential backoff on failure. On exhaustion it records a
// circuit-breaker failure and keeps whatever tool list the registry
// already had cached, rather than propagating the error — a flaky MCP
// server should degrade gracefully, not crash the turn loop.
//
// Grounded on vtcode-core/src/tools/registry/mcp_facade.rs::refresh_mcp_tools.
func (r *Registry) RefreshTools(ctx context.Context, name string) error {
	b := breakerFor(name)
	if !b.Allow() {
		log.Logger().Debug("mcp refresh skipped: circuit open", zap.String("server", name))
		return nil
	}

	err := circuit.Retry(ctx, refreshAttempts, func() error {
		if c, ok := r.GetClient(name); ok && c.IsConnected() {
			_, err := c.ListTools(ctx)
			return err
		}
		return r.Connect(ctx, name)
	})

	if err != nil {
		log.Logger().Warn("failed to refresh MCP tools after retries; keeping existing cache",
			zap.String("server", name), zap.Error(err))
		b.RecordFailure()
		return nil
	}

	b.RecordSuccess()
	r.notifyToolsChanged()
	return nil
}

// RefreshAll refreshes every configured server, collecting (but not
// failing on) per-server errors.
func (r *Registry) RefreshAll(ctx context.Context) {
	r.mu.RLock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		_ = r.RefreshTools(ctx, name)
	}
}
