package schema

import "testing"

func sampleSchema() any {
	return map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path":  map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		},
	}
}

func TestValidateNilSchemaAlwaysPasses(t *testing.T) {
	if err := Validate("Read", nil, map[string]any{"anything": "goes"}); err != nil {
		t.Fatalf("expected nil schema to always pass, got %v", err)
	}
}

func TestValidateAcceptsMatchingArgs(t *testing.T) {
	args := map[string]any{"path": "main.go", "limit": 100}
	if err := Validate("Read", sampleSchema(), args); err != nil {
		t.Fatalf("expected valid args to pass, got %v", err)
	}
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	args := map[string]any{"limit": 100}
	if err := Validate("Read", sampleSchema(), args); err == nil {
		t.Fatalf("expected missing required field to fail validation")
	}
}

func TestValidateRejectsWrongType(t *testing.T) {
	args := map[string]any{"path": "main.go", "limit": "not-a-number"}
	if err := Validate("Read", sampleSchema(), args); err == nil {
		t.Fatalf("expected wrong-typed field to fail validation")
	}
}

func TestValidateCachesCompiledSchema(t *testing.T) {
	s := sampleSchema()
	args := map[string]any{"path": "a.go"}
	if err := Validate("Read", s, args); err != nil {
		t.Fatalf("first validate: %v", err)
	}
	if err := Validate("Read", s, args); err != nil {
		t.Fatalf("second (cached) validate: %v", err)
	}
}
