package llm

import (
	"sync"

	"github.com/majordomo-ai/majordomo/pkg/budget"
)

// History trim thresholds: once the conversation grows past maxEntries,
// only the most recent keepEntries survive.
const (
	maxEntries  = 20
	keepEntries = 16
)

// compressionNote replaces the turns dropped by Compress.
const compressionNote = "[Previous conversation context compressed. Continuing conversation with essential context preserved.]"

// History is the conversation memory appended to after every successful
// exchange. Safe for concurrent use.
type History struct {
	mu   sync.Mutex
	msgs []Message
}

// NewHistory creates an empty conversation history.
func NewHistory() *History {
	return &History{}
}

// AppendExchange records one user/assistant exchange and trims the
// history to the most recent entries once it grows past the threshold.
func (h *History) AppendExchange(userInput, response string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.msgs = append(h.msgs,
		NewUserMessage(userInput),
		NewAssistantMessage(response),
	)

	if len(h.msgs) > maxEntries {
		h.msgs = append([]Message(nil), h.msgs[len(h.msgs)-keepEntries:]...)
	}
}

// Messages returns a copy of the current history.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.msgs...)
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = nil
}

// messageTokens estimates the token footprint of one message.
func messageTokens(m Message) int {
	return budget.EstimateTokens(m.Content)
}

// totalTokens estimates the token footprint of a message set.
func totalTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += messageTokens(m)
	}
	return total
}

// Compress bounds a message set to maxTokens while preserving the leading
// system message (if present) and as many of the most recent messages as
// fit. Dropped older turns are replaced with a single synthetic system
// note. Returns the bounded set and whether anything was dropped.
//
// The recency bias is deliberate: distant context is traded away so the
// current turn and standing instructions are always included.
func Compress(msgs []Message, maxTokens int) ([]Message, bool) {
	if len(msgs) == 0 {
		return nil, false
	}
	if totalTokens(msgs) <= maxTokens {
		return msgs, false
	}

	var head []Message
	rest := msgs
	if rest[0].Role == RoleSystem {
		head = append(head, rest[0])
		rest = rest[1:]
	}

	note := NewSystemMessage(compressionNote)

	remaining := maxTokens
	for _, m := range head {
		remaining -= messageTokens(m)
	}
	remaining -= messageTokens(note)

	// Walk newest to oldest, keeping whatever still fits.
	var kept []Message
	for i := len(rest) - 1; i >= 0; i-- {
		cost := messageTokens(rest[i])
		if cost > remaining {
			break
		}
		kept = append(kept, rest[i])
		remaining -= cost
	}

	// kept is newest-first; reverse into chronological order.
	out := append([]Message(nil), head...)
	out = append(out, note)
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out, true
}
