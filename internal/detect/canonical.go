package detect

import "strings"

// textualToolPrefixes are scanned, in order, by the prefix+balanced-args
// fallback when none of the five structured formats match.
var textualToolPrefixes = []string{
	"functions.",
	"tool:",
	"call:",
	"invoke:",
}

// directFunctionAliases are bare identifiers the fallback scanner treats as
// tool invocations even without one of the prefixes above, e.g. a model
// emitting `read_file("x.go")` directly.
var directFunctionAliases = []string{
	"read_file",
	"write_file",
	"edit_file",
	"list_dir",
	"grep",
	"glob",
	"run_command",
	"bash",
}

// aliasToCanonical maps every alias/snake_case spelling this package
// recognizes to the tool registry's canonical PascalCase name.
var aliasToCanonical = map[string]string{
	"read_file":      "Read",
	"readfile":       "Read",
	"read":           "Read",
	"write_file":     "Write",
	"writefile":      "Write",
	"write":          "Write",
	"edit_file":      "Edit",
	"editfile":       "Edit",
	"edit":           "Edit",
	"list_dir":       "Glob",
	"listdir":        "Glob",
	"glob":           "Glob",
	"grep":           "Grep",
	"search":         "Grep",
	"run_command":    "Bash",
	"runcommand":     "Bash",
	"bash":           "Bash",
	"shell":          "Bash",
	"web_fetch":      "WebFetch",
	"webfetch":       "WebFetch",
	"fetch_url":      "WebFetch",
	"web_search":     "WebSearch",
	"websearch":      "WebSearch",
}

// CanonicalizeName resolves a detected, possibly-aliased tool name spelling
// to the registry's canonical name. Returns ("", false) for an unknown name
// rather than guessing — an unrecognized textual call must never execute.
func CanonicalizeName(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", false
	}
	key := strings.ToLower(trimmed)
	key = strings.TrimPrefix(key, "functions.")
	if canonical, ok := aliasToCanonical[key]; ok {
		return canonical, true
	}
	// Already-canonical exact spellings (e.g. "Read", "WebFetch") pass
	// through unchanged so native tool names detected via text still work.
	for _, canonical := range aliasToCanonical {
		if strings.EqualFold(canonical, trimmed) {
			return canonical, true
		}
	}
	return "", false
}
