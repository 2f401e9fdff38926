package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStreamingMessageFlushesOnComplete(t *testing.T) {
	r := New("thread", nil)
	r.TurnStarted()
	if !r.AgentMessageStreamUpdate("partial") {
		t.Fatalf("expected stream update to report progress")
	}
	r.AgentMessageStreamComplete()

	found := false
	for _, evt := range r.Events() {
		if evt.Kind == KindItemCompleted && evt.Item.Kind == ItemAgentMessage {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a completed agent-message item after streaming")
	}
}

func TestStreamingMessageBlankTextIsNoop(t *testing.T) {
	r := New("thread", nil)
	if r.AgentMessageStreamUpdate("   ") {
		t.Fatalf("expected blank text to be a no-op")
	}
}

func TestCommandEventsCaptureStatus(t *testing.T) {
	r := New("thread", nil)
	handle := r.CommandStarted("git status")
	zero := 0
	r.CommandFinished(handle, CommandCompleted, &zero, "")

	var command *Item
	for _, evt := range r.Events() {
		if evt.Kind == KindItemCompleted && evt.Item.Kind == ItemCommandExecution {
			item := evt.Item
			command = &item
		}
	}
	if command == nil {
		t.Fatalf("expected a completed command-execution item")
	}
	if command.Command != "git status" || command.Status != CommandCompleted {
		t.Fatalf("unexpected command item: %+v", command)
	}
}

func TestItemIDsAreMonotonic(t *testing.T) {
	r := New("thread", nil)
	r.AgentMessage("first")
	r.AgentMessage("second")

	var ids []string
	for _, evt := range r.Events() {
		if evt.Kind == KindItemCompleted {
			ids = append(ids, evt.Item.ID)
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected two distinct monotonic item IDs, got %v", ids)
	}
	if ids[0] != "item_0" || ids[1] != "item_1" {
		t.Fatalf("expected item_0/item_1 naming, got %v", ids)
	}
}

func TestSinkReceivesEachEvent(t *testing.T) {
	var seen []Kind
	r := New("thread", func(evt Event) { seen = append(seen, evt.Kind) })
	r.TurnStarted()
	r.AgentMessage("hello")
	r.TurnCompleted()

	if len(seen) != 4 { // ThreadStarted + TurnStarted + ItemCompleted + TurnCompleted
		t.Fatalf("expected 4 sink calls, got %d: %v", len(seen), seen)
	}
}

func TestMCPCallMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := New("thread", nil).WithMetrics(m)

	handle := r.MCPCallStarted("github", "list_issues")
	r.MCPCallFinished(handle, MCPSuccess, nil)

	count := testutilCounterCount(t, reg, "coreloop_events_mcp_call_duration_seconds")
	if count != 1 {
		t.Fatalf("expected 1 observation recorded, got %d", count)
	}
}

// testutilCounterCount avoids pulling in prometheus/client_golang/testutil
// just for a sample count; it walks the registry's gathered families.
func testutilCounterCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var total uint64
		for _, metric := range fam.GetMetric() {
			total += metric.GetHistogram().GetSampleCount()
		}
		return total
	}
	return 0
}
