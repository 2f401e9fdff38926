package core

import (
	"fmt"

	"github.com/atlasagent/coreloop/internal/message"
	"github.com/atlasagent/coreloop/internal/tokenbudget"
)

// DefaultPreserveRecentTurns is the number of trailing turns CompactByBudget
// keeps intact when collapsing a conversation.
const DefaultPreserveRecentTurns = 5

// turnBoundaries returns the start index of each turn in msgs. A turn starts
// at a user message (or at index 0, for transcripts that open with a
// synthetic assistant/tool-result message).
func turnBoundaries(msgs []message.Message) []int {
	var bounds []int
	for i, m := range msgs {
		if i == 0 || m.Role == message.RoleUser {
			bounds = append(bounds, i)
		}
	}
	return bounds
}

// CollapseOldestTurns replaces all but the newest preserveRecent turns of
// msgs with a single synthetic user-role summary message, keeping the most
// recent preserveRecent turns intact. It reports the number of turns it
// collapsed. If msgs has preserveRecent or fewer turns, it returns msgs
// unchanged and 0.
func CollapseOldestTurns(msgs []message.Message, preserveRecent int) ([]message.Message, int) {
	bounds := turnBoundaries(msgs)
	totalTurns := len(bounds)
	if preserveRecent <= 0 {
		preserveRecent = DefaultPreserveRecentTurns
	}
	if totalTurns <= preserveRecent {
		return msgs, 0
	}

	collapsedCount := totalTurns - preserveRecent
	splitAt := bounds[collapsedCount]

	oldest := msgs[:splitAt]
	recent := msgs[splitAt:]

	summary := message.Message{
		Role: message.RoleUser,
		Content: fmt.Sprintf("Summarized %d earlier turns:\n\n%s",
			collapsedCount, message.BuildConversationText(oldest)),
	}

	out := make([]message.Message, 0, 1+len(recent))
	out = append(out, summary)
	out = append(out, recent...)
	return out, collapsedCount
}

// CompactByBudget collapses the oldest turns of msgs into a summary once the
// budget's usage ratio requires compaction (tokenbudget.Manager.NeedsCompaction),
// preserving the preserveRecent most recent turns. It reports whether it
// collapsed anything.
func CompactByBudget(budget *tokenbudget.Manager, msgs []message.Message, preserveRecent int) ([]message.Message, bool) {
	if budget == nil || !budget.NeedsCompaction() {
		return msgs, false
	}
	collapsed, count := CollapseOldestTurns(msgs, preserveRecent)
	return collapsed, count > 0
}
