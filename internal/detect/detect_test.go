package detect

import "testing"

func TestDetectChannelFormat(t *testing.T) {
	text := `<|channel|>commentary to=functions.read_file<|message|>{"path":"x.go"}`
	call, ok := Detect(text)
	if !ok {
		t.Fatalf("expected a detected call")
	}
	if call.Name != "Read" {
		t.Fatalf("expected canonical name Read, got %q", call.Name)
	}
	if call.Args["path"] != "x.go" {
		t.Fatalf("expected path arg x.go, got %v", call.Args["path"])
	}
}

func TestDetectTaggedFormat(t *testing.T) {
	text := `<tool_call name="read_file">{"path": "x.go"}</tool_call>`
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read, got %+v ok=%v", call, ok)
	}
}

func TestDetectStructFormat(t *testing.T) {
	text := `ReadFile { path: "x.go", limit: 100 }`
	// "ReadFile" also resolves (CanonicalizeName lowercases it to
	// "readfile"); this case exercises the snake_case spelling.
	text = `read_file { path: "x.go", limit: 100 }`
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read, got %+v ok=%v", call, ok)
	}
	if call.Args["path"] != "x.go" {
		t.Fatalf("expected path x.go, got %v", call.Args["path"])
	}
}

func TestDetectYAMLFormat(t *testing.T) {
	text := "tool: read_file\nargs:\n  path: x.go\n  limit: 100\n"
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read, got %+v ok=%v", call, ok)
	}
}

func TestDetectBracketedFormat(t *testing.T) {
	text := `[[call: read_file {"path": "x.go"}]]`
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read, got %+v ok=%v", call, ok)
	}
}

func TestDetectBracketedCallSyntax(t *testing.T) {
	text := `[read_file(path="x.go")]`
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read, got %+v ok=%v", call, ok)
	}
}

func TestDetectPrefixFallback(t *testing.T) {
	text := `I'll call functions.read_file(path="x.go") now.`
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read via prefix fallback, got %+v ok=%v", call, ok)
	}
}

func TestDetectDirectAliasFallback(t *testing.T) {
	text := `read_file(path="x.go")`
	call, ok := Detect(text)
	if !ok || call.Name != "Read" {
		t.Fatalf("expected Read via direct alias, got %+v ok=%v", call, ok)
	}
}

func TestDetectRejectsExcessiveNesting(t *testing.T) {
	var open, close string
	for i := 0; i < 300; i++ {
		open += "("
		close += ")"
	}
	text := "functions.read_file" + open + close
	if _, ok := Detect(text); ok {
		t.Fatalf("expected over-nested input to be rejected")
	}
}

func TestDetectRejectsUnmatchedDelimiters(t *testing.T) {
	text := `functions.read_file(path="x.go"`
	if _, ok := Detect(text); ok {
		t.Fatalf("expected unbalanced parens to be rejected")
	}
}

func TestDetectNoMatchReturnsFalse(t *testing.T) {
	if _, ok := Detect("just a plain sentence with no tool call"); ok {
		t.Fatalf("expected no match")
	}
}

func TestDetectUnknownNameRejected(t *testing.T) {
	text := `functions.totally_unknown_tool(x=1)`
	if _, ok := Detect(text); ok {
		t.Fatalf("expected unknown tool name to be rejected rather than guessed")
	}
}
