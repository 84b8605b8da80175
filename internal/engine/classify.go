package engine

import (
	"strings"

	"agentmemory/internal/memmodel"
)

// classify derives a memory's Type from a deterministic keyword scan over
// lowercased content when the caller did not supply one explicitly.
func classify(content string) memmodel.Type {
	lower := strings.ToLower(content)

	switch {
	case containsAny(lower, "prefer", "like", "dislike"):
		return memmodel.TypePreference
	case containsAny(lower, "feel", "happy", "sad", "emotion"):
		return memmodel.TypeEmotion
	case containsAny(lower, "task", "todo", "finish"):
		return memmodel.TypeTask
	case containsAny(lower, "how to", "step", "process"):
		return memmodel.TypeProcedure
	default:
		return memmodel.TypeFact
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// priorityWords are the distinct keywords that each bump importance by 0.1,
// capped at 1.0 on top of the 0.5 base.
var priorityWords = []string{
	"urgent", "critical", "important", "asap", "priority", "must", "always", "never",
}

// importanceFor computes base importance 0.5 + 0.1 per distinct priority
// word matched in content, capped at 1.0.
func importanceFor(content string) float64 {
	lower := strings.ToLower(content)
	score := 0.5
	for _, w := range priorityWords {
		if strings.Contains(lower, w) {
			score += 0.1
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
