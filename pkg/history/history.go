// Package history keeps the per-session record of sent commands and traffic
package history

import (
	"sync"
)

// DefaultCommandLimit is the number of commands remembered per session
const DefaultCommandLimit = 50

// CommandHistory is a bounded most-recent-first list of sent commands.
// Re-sending a command moves it to the front instead of duplicating it.
type CommandHistory struct {
	mu      sync.Mutex
	entries []string
	limit   int
}

// NewCommandHistory creates a history holding at most limit commands
func NewCommandHistory(limit int) *CommandHistory {
	if limit <= 0 {
		limit = DefaultCommandLimit
	}
	return &CommandHistory{limit: limit}
}

// Add records command as the most recent entry
func (h *CommandHistory) Add(command string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.entries {
		if existing == command {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}

	h.entries = append([]string{command}, h.entries...)
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// Entries returns a copy of the commands, most recent first
func (h *CommandHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Get returns the command at index, where 0 is the most recent
func (h *CommandHistory) Get(index int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 || index >= len(h.entries) {
		return "", false
	}
	return h.entries[index], true
}

// Len returns the number of remembered commands
func (h *CommandHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear forgets all commands
func (h *CommandHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
