// Package tokens provides rough token accounting and the context trimming
// policy used to keep conversation history inside the model's window.
package tokens

import (
	"fmt"
	"log/slog"

	"github.com/hermesagent/hermes/internal/ai"
)

// DefaultKeepRecent is the number of most recent messages preserved verbatim
// when trimming.
const DefaultKeepRecent = 10

// Estimate returns a rough token count for text (1 token ~ 4 characters).
func Estimate(text string) int {
	return len(text) / 4
}

// CountMessages estimates the total tokens across all message contents.
func CountMessages(messages []ai.Message) int {
	total := 0
	for _, msg := range messages {
		total += Estimate(msg.Content)
	}
	return total
}

// Trim drops older messages when the estimated total exceeds maxTokens.
// The first message is preserved when it is a system prompt, the last
// keepRecent messages are preserved verbatim, and a single synthetic system
// message records how many older messages were removed. Returns the (possibly
// unchanged) message slice and whether trimming happened.
//
// Trim is pure: it never mutates its input and performs no I/O.
func Trim(messages []ai.Message, maxTokens, keepRecent int) ([]ai.Message, bool) {
	if len(messages) == 0 {
		return messages, false
	}

	totalTokens := CountMessages(messages)
	if totalTokens <= maxTokens {
		return messages, false
	}

	var systemMsg *ai.Message
	if messages[0].Role == ai.RoleSystem {
		systemMsg = &messages[0]
	}

	// Last keepRecent messages from the original list, independent of
	// whether a system message was separately retained.
	start := len(messages) - keepRecent
	if start < 0 {
		start = 0
	}
	recent := messages[start:]

	trimmed := make([]ai.Message, 0, len(recent)+2)
	if systemMsg != nil {
		trimmed = append(trimmed, *systemMsg)
	}

	numTrimmed := len(messages) - len(recent)
	if systemMsg != nil {
		numTrimmed--
	}
	if numTrimmed > 0 {
		trimmed = append(trimmed, ai.Message{
			Role:    ai.RoleSystem,
			Content: fmt.Sprintf("[Context trimmed: %d older messages removed to stay within token limit]", numTrimmed),
		})
	}

	trimmed = append(trimmed, recent...)

	slog.Info("context trimmed",
		"messages_before", len(messages),
		"messages_after", len(trimmed),
		"tokens_before", totalTokens,
		"tokens_after", CountMessages(trimmed),
	)

	return trimmed, true
}
