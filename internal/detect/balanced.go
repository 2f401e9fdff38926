package detect

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/atlasagent/coreloop/internal/log"
)

// maxNestingDepth bounds the delimiter stack depth so a pathological input
// (thousands of unmatched opening brackets) can never force unbounded
// stack growth while scanning.
const maxNestingDepth = 256

func matchingOpenDelimiter(close rune) (rune, bool) {
	switch close {
	case ')':
		return '(', true
	case '}':
		return '{', true
	case ']':
		return '[', true
	default:
		return 0, false
	}
}

// findMatchingParenEnd scans text starting at argsStart (the byte index
// just past an opening '(') for the byte index of the matching close
// paren, honoring nested delimiters and string-literal/escape awareness.
// Returns -1 if the input is unbalanced, uses an unsupported closing
// delimiter, or exceeds maxNestingDepth.
func findMatchingParenEnd(text string, argsStart int) int {
	stack := make([]rune, 0, 8)
	stack = append(stack, '(')

	var inString rune
	inStringActive := false
	escaped := false

	rest := text[argsStart:]
	for i, ch := range rest {
		if inStringActive {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == inString {
				inStringActive = false
			}
			continue
		}

		if ch == '"' || ch == '\'' {
			inString = ch
			inStringActive = true
			continue
		}

		switch ch {
		case '(', '{', '[':
			stack = append(stack, ch)
			if len(stack) > maxNestingDepth {
				log.Logger().Warn("rejected textual tool call: excessive delimiter nesting",
					zap.Int("depth", len(stack)), zap.Int("max_depth", maxNestingDepth))
				return -1
			}
		case ')', '}', ']':
			expected, ok := matchingOpenDelimiter(ch)
			if !ok {
				return -1
			}
			if len(stack) == 0 {
				return -1
			}
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if current != expected {
				return -1
			}
			if len(stack) == 0 {
				return argsStart + i
			}
		}
	}
	return -1
}

// parseTextualArguments parses a comma-separated key=value or bare-JSON
// argument blob (the contents between a tool call's parentheses) into a
// generic argument map. It tolerates quoted strings, bare numbers/bools,
// and falls back to treating the whole blob as a single "input" argument
// when no key=value pairs are found.
func parseTextualArguments(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, true
	}

	body := raw
	if looksLikeJSONObject(raw) {
		if obj, ok := parseJSONLikeObject(raw); ok {
			return obj, true
		}
		// Not strict JSON (e.g. unquoted keys from a struct-like format) —
		// strip the outer braces and fall through to key=value parsing.
		body = strings.TrimSpace(raw[1 : len(raw)-1])
	}

	pairs := splitTopLevel(body, ',')
	args := make(map[string]any)
	sawPair := false
	for _, pair := range pairs {
		key, value, ok := splitKeyValue(pair)
		if !ok {
			continue
		}
		sawPair = true
		args[key] = coerceScalar(value)
	}
	if sawPair {
		return args, true
	}

	return map[string]any{"input": unquote(raw)}, true
}

func looksLikeJSONObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// splitTopLevel splits s on sep, but never inside quotes or nested
// delimiters — a comma inside a quoted string or nested struct doesn't
// start a new argument.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	var depth int
	var inString rune
	inStringActive := false
	escaped := false
	start := 0

	for i, ch := range s {
		if inStringActive {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == inString {
				inStringActive = false
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inString = ch
			inStringActive = true
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
		default:
			if ch == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + len(string(sep))
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func splitKeyValue(pair string) (string, string, bool) {
	idx := strings.IndexAny(pair, "=:")
	if idx < 0 {
		return "", "", false
	}
	key := strings.TrimSpace(pair[:idx])
	key = strings.Trim(key, `"'`)
	if key == "" {
		return "", "", false
	}
	value := strings.TrimSpace(pair[idx+1:])
	return key, value, true
}

func coerceScalar(v string) any {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return unquote(v)
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		inner := v[1 : len(v)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return v
}
