// Package detect recovers tool calls a model emitted as plain text instead
// of a native tool-call message. Parsing is tried in a fixed order —
// channel format, tagged, struct-like, YAML-ish, bracketed — and falls back
// to scanning for known prefixes (or bare direct-function aliases) followed
// by a balanced, string-literal-aware parenthesized argument block.
//
// Grounded on _examples/original_source/src/agent/runloop/text_tools/detect.rs
// for the overall try-in-order structure and the balanced-delimiter scanner
// (ported near line-for-line in balanced.go); the five structured formats
// themselves aren't present in the retrieval pack's original_source copy,
// so they're implemented directly from spec.md §4.3's prose description.
package detect

import "strings"

// Call is a recovered textual tool invocation, already canonicalized.
type Call struct {
	Name string
	Args map[string]any
}

type formatParser func(text string) (name string, rawArgs string, ok bool)

var formats = []formatParser{
	parseChannelToolCall,
	parseTaggedToolCall,
	parseStructToolCall,
	parseYAMLToolCall,
	parseBracketedToolCall,
}

// Detect tries every structured format in order, then the prefix and
// direct-alias fallback scanners, returning the first recovered call.
// Detection is deterministic: the same input always yields the same
// result, and a rejected (unbalanced, over-nested, or unrecognized) match
// never causes a partial/garbage call to be returned.
func Detect(text string) (Call, bool) {
	for _, parse := range formats {
		name, rawArgs, ok := parse(text)
		if !ok {
			continue
		}
		canonical, known := CanonicalizeName(name)
		if !known {
			continue
		}
		args, ok := parseTextualArguments(rawArgs)
		if !ok {
			continue
		}
		return Call{Name: canonical, Args: args}, true
	}

	if call, ok := detectByPrefix(text); ok {
		return call, true
	}
	if call, ok := detectDirectAlias(text); ok {
		return call, true
	}
	return Call{}, false
}

// detectByPrefix scans for a known prefix (e.g. "functions.") followed by
// an identifier and a balanced parenthesized argument block.
func detectByPrefix(text string) (Call, bool) {
	for _, prefix := range textualToolPrefixes {
		searchFrom := 0
		for searchFrom < len(text) {
			idx := strings.Index(text[searchFrom:], prefix)
			if idx < 0 {
				break
			}
			prefixIndex := searchFrom + idx
			nameStart := prefixIndex + len(prefix)
			if nameStart >= len(text) {
				break
			}

			nameLen := identifierLength(text[nameStart:])
			if nameLen == 0 {
				searchFrom = nameStart
				continue
			}
			name := text[nameStart : nameStart+nameLen]
			afterName := text[nameStart+nameLen:]

			parenOffset := strings.IndexByte(afterName, '(')
			if parenOffset < 0 {
				searchFrom = nameStart
				continue
			}

			argsStart := nameStart + nameLen + parenOffset + 1
			argsEnd := findMatchingParenEnd(text, argsStart)
			if argsEnd < 0 {
				searchFrom = nameStart
				continue
			}

			rawArgs := text[argsStart:argsEnd]
			canonical, known := CanonicalizeName(name)
			if known {
				if args, ok := parseTextualArguments(rawArgs); ok {
					return Call{Name: canonical, Args: args}, true
				}
			}
			searchFrom = prefixIndex + len(prefix) + nameLen
		}
	}
	return Call{}, false
}

// detectDirectAlias scans for a bare alias identifier (e.g. "read_file")
// immediately followed — across any whitespace — by a balanced
// parenthesized argument block, without requiring one of the known
// prefixes.
func detectDirectAlias(text string) (Call, bool) {
	lowered := strings.ToLower(text)
	for _, alias := range directFunctionAliases {
		aliasLower := strings.ToLower(alias)
		searchFrom := 0
		for searchFrom < len(lowered) {
			idx := strings.Index(lowered[searchFrom:], aliasLower)
			if idx < 0 {
				break
			}
			start := searchFrom + idx
			end := start + len(aliasLower)

			if start > 0 && isIdentChar(rune(lowered[start-1])) {
				searchFrom = end
				continue
			}

			parenPos := -1
			for i := end; i < len(text); i++ {
				ch := text[i]
				if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
					continue
				}
				if ch == '(' {
					parenPos = i
				}
				break
			}
			if parenPos < 0 {
				searchFrom = end
				continue
			}

			argsStart := parenPos + 1
			argsEnd := findMatchingParenEnd(text, argsStart)
			if argsEnd < 0 {
				searchFrom = end
				continue
			}

			rawArgs := text[argsStart:argsEnd]
			canonical, known := CanonicalizeName(alias)
			if known {
				if args, ok := parseTextualArguments(rawArgs); ok {
					return Call{Name: canonical, Args: args}, true
				}
			}
			searchFrom = end
		}
	}
	return Call{}, false
}

func identifierLength(s string) int {
	n := 0
	for _, ch := range s {
		if isIdentChar(ch) {
			n += len(string(ch))
		} else {
			break
		}
	}
	return n
}

func isIdentChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
}
