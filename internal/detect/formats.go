// Five structured textual-tool-call formats, tried in fixed order ahead of
// the prefix+balanced-args fallback in detect.go. Each returns the raw
// (name, rawArgs) pair on a match; canonicalization and argument parsing
// happen in the shared caller so every format goes through the same rules.
package detect

import (
	"regexp"
	"strings"
)

// parseChannelToolCall recognizes the "harmony"-style channel format some
// open-weight models emit instead of a native tool-call message:
//
//	<|channel|>commentary to=functions.read_file<|message|>{"path":"x.go"}
var channelPattern = regexp.MustCompile(`<\|channel\|>\s*\S*\s+to=functions\.([A-Za-z_][A-Za-z0-9_]*)\s*<\|message\|>(\{.*?\})`)

func parseChannelToolCall(text string) (string, string, bool) {
	m := channelPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// parseTaggedToolCall recognizes an XML-ish tagged invocation:
//
//	<tool_call name="read_file">{"path": "x.go"}</tool_call>
//	<use_tool name="read_file" args='{"path":"x.go"}' />
var taggedPattern = regexp.MustCompile(`<(?:tool_call|use_tool)\s+name=["']([A-Za-z_][A-Za-z0-9_]*)["'][^>]*?(?:args=["'](\{.*?\})["'])?\s*/?>(?:\s*(\{.*?\})\s*</(?:tool_call|use_tool)>)?`)

func parseTaggedToolCall(text string) (string, string, bool) {
	m := taggedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	name := m[1]
	args := m[2]
	if args == "" {
		args = m[3]
	}
	if args == "" {
		args = "{}"
	}
	return name, args, true
}

// parseStructToolCall recognizes a Rust/Go-struct-like literal:
//
//	ReadFile { path: "x.go", limit: 100 }
var structPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\{([^{}]*)\}`)

func parseStructToolCall(text string) (string, string, bool) {
	m := structPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	name := m[1]
	if _, ok := CanonicalizeName(name); !ok {
		return "", "", false
	}
	return name, "{" + m[2] + "}", true
}

// parseYAMLToolCall recognizes a YAML-ish block:
//
//	tool: read_file
//	args:
//	  path: x.go
//	  limit: 100
var yamlToolLine = regexp.MustCompile(`(?m)^\s*tool:\s*([A-Za-z_][A-Za-z0-9_]*)\s*$`)
var yamlArgsHeader = regexp.MustCompile(`(?m)^\s*args:\s*$`)
var yamlArgLine = regexp.MustCompile(`(?m)^\s{2,}([A-Za-z_][A-Za-z0-9_]*):\s*(.+)$`)

func parseYAMLToolCall(text string) (string, string, bool) {
	nameMatch := yamlToolLine.FindStringSubmatchIndex(text)
	if nameMatch == nil {
		return "", "", false
	}
	name := text[nameMatch[2]:nameMatch[3]]

	tail := text[nameMatch[1]:]
	argsIdx := yamlArgsHeader.FindStringIndex(tail)
	if argsIdx == nil {
		return name, "{}", true
	}
	argsBlock := tail[argsIdx[1]:]

	// Stop at the first line that isn't indented (end of the args block).
	lines := strings.Split(argsBlock, "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "\t") {
			break
		}
		kept = append(kept, line)
	}

	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for _, line := range kept {
		m := yamlArgLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(m[1])
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(m[2]))
	}
	sb.WriteString("}")
	return name, sb.String(), true
}

// parseBracketedToolCall recognizes a bracketed call:
//
//	[[call: read_file {"path": "x.go"}]]
//	[read_file(path="x.go")]
var bracketedJSONPattern = regexp.MustCompile(`\[\[?\s*call:\s*([A-Za-z_][A-Za-z0-9_]*)\s+(\{.*?\})\s*\]?\]`)
var bracketedCallPattern = regexp.MustCompile(`\[([A-Za-z_][A-Za-z0-9_]*)\(([^()]*)\)\]`)

func parseBracketedToolCall(text string) (string, string, bool) {
	if m := bracketedJSONPattern.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	if m := bracketedCallPattern.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}
