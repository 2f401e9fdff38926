// Package curator composes the bounded context sent to the model each turn:
// the system prompt, a running ledger summary, the most recent N messages
// verbatim, the top-K most relevant tool descriptions, and any recent tool
// errors worth surfacing again.
//
// Grounded on the teacher's internal/system.BuildPrompt (prompt assembly by
// concatenating named sections) and internal/message.BuildConversationText
// (the ledger-summarization text format), generalized to curate a bounded
// window instead of sending the full transcript.
package curator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atlasagent/coreloop/internal/message"
	"github.com/atlasagent/coreloop/internal/provider"
)

// Options configures one curation pass.
type Options struct {
	SystemPrompt string
	Ledger       string // running compaction summary, if any
	RecentTurns  int    // how many trailing messages to keep verbatim
	ToolBudget   int    // how many tool schemas to keep (0 = all)
	RecentErrors []string
}

// DefaultRecentTurns is used when Options.RecentTurns is unset (<= 0).
const DefaultRecentTurns = 20

// Curated is the bounded context handed to the provider for one turn.
type Curated struct {
	SystemPrompt string
	Messages     []message.Message
	Tools        []provider.Tool
}

// Curate assembles a bounded request from the full message history and tool
// set. Messages older than the trailing RecentTurns window are dropped in
// favor of Options.Ledger (the caller is responsible for keeping Ledger up
// to date via core.Compact); Curate itself never calls the model.
func Curate(msgs []message.Message, tools []provider.Tool, opts Options) Curated {
	recent := opts.RecentTurns
	if recent <= 0 {
		recent = DefaultRecentTurns
	}

	kept := msgs
	if len(msgs) > recent {
		kept = msgs[len(msgs)-recent:]
	}

	prompt := opts.SystemPrompt
	if opts.Ledger != "" {
		prompt = strings.Join(nonEmpty(prompt, formatLedger(opts.Ledger)), "\n\n")
	}
	if len(opts.RecentErrors) > 0 {
		prompt = strings.Join(nonEmpty(prompt, formatRecentErrors(opts.RecentErrors)), "\n\n")
	}

	return Curated{
		SystemPrompt: prompt,
		Messages:     kept,
		Tools:        TopK(tools, opts.ToolBudget),
	}
}

func formatLedger(ledger string) string {
	return "<ledger>\n" + ledger + "\n</ledger>"
}

func formatRecentErrors(errs []string) string {
	var sb strings.Builder
	sb.WriteString("<recent_errors>\n")
	for _, e := range errs {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	sb.WriteString("</recent_errors>")
	return sb.String()
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// TopK returns at most k tools, ranked by relevanceScore and stable-sorted
// to keep ties in their original order. k<=0 or k>=len(tools) returns tools
// unchanged.
func TopK(tools []provider.Tool, k int) []provider.Tool {
	if k <= 0 || k >= len(tools) {
		return tools
	}

	ranked := make([]provider.Tool, len(tools))
	copy(ranked, tools)
	sort.SliceStable(ranked, func(i, j int) bool {
		return relevanceScore(ranked[i]) > relevanceScore(ranked[j])
	})
	return ranked[:k]
}

// relevanceScore favors read-only/navigation tools slightly, on the theory
// that a curated, budget-constrained tool list should keep the cheap,
// always-useful tools over rarely-needed ones when something has to be
// dropped. Ties keep their input order via the stable sort in TopK.
func relevanceScore(t provider.Tool) int {
	switch t.Name {
	case "Read", "Glob", "Grep", "LSP":
		return 3
	case "Write", "Edit", "Bash":
		return 2
	default:
		return 1
	}
}
