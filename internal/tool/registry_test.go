package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/atlasagent/coreloop/internal/tool/ui"
)

type stubTool struct {
	name    string
	aliases []string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Icon() string        { return "x" }
func (s *stubTool) Execute(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	return ui.NewSuccessResult(s.name, "x", "", 0, 0, 0, 0)
}
func (s *stubTool) Aliases() []string { return s.aliases }

func TestRegistryRejectsReRegistration(t *testing.T) {
	r := NewRegistry()
	first := &stubTool{name: "Stub"}
	second := &stubTool{name: "Stub"}

	r.Register(first)
	r.Register(second)

	got, ok := r.Get("stub")
	if !ok {
		t.Fatal("expected stub to be registered")
	}
	if got != Tool(first) {
		t.Fatal("expected re-registration to be ignored, first registration should win")
	}
}

func TestRegistryAliasResolution(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "NewName", aliases: []string{"OldName"}})

	canonical, ok := r.Get("NewName")
	if !ok || canonical.Name() != "NewName" {
		t.Fatal("expected canonical lookup to succeed")
	}
	aliased, ok := r.Get("oldname")
	if !ok || aliased.Name() != "NewName" {
		t.Fatal("expected alias lookup to resolve to the canonical tool")
	}
}

func TestRegistryAliasNeverShadowsCanonical(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "A", aliases: []string{"B"}})
	r.Register(&stubTool{name: "B"})

	got, ok := r.Get("B")
	if !ok || got.Name() != "B" {
		t.Fatal("expected the canonical registration of B to win over A's alias")
	}
}

func TestRegistryExecuteMissingToolIsTyped(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(context.Background(), "DoesNotExist", nil, "/tmp")
	if result.Success {
		t.Fatal("expected failure for unknown tool")
	}

	var missing *ToolMissing
	if !errors.As(error(&ToolMissing{Name: "DoesNotExist"}), &missing) {
		t.Fatal("ToolMissing should satisfy error.As")
	}
	if missing.Error() != "unknown tool: DoesNotExist" {
		t.Fatalf("unexpected message: %q", missing.Error())
	}
}

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry()
	r.Register(&ReadTool{})
	r.Register(&WriteTool{})

	readDesc, ok := r.Describe("Read")
	if !ok {
		t.Fatal("expected Read to be described")
	}
	if readDesc.IsMutating {
		t.Fatal("Read should not be mutating")
	}
	if !readDesc.ParallelSafe {
		t.Fatal("Read should be parallel-safe")
	}
	if !readDesc.LLMVisible {
		t.Fatal("Read should be LLM-visible")
	}

	writeDesc, ok := r.Describe("Write")
	if !ok {
		t.Fatal("expected Write to be described")
	}
	if !writeDesc.IsMutating {
		t.Fatal("Write should be mutating")
	}
}
