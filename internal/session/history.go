// Package session holds per-role conversation state and the shared
// cross-task state accumulated over a workbench session.
package session

import (
	"encoding/json"
	"sync"

	"github.com/spectersec/specter/pkg/models"
)

// EntryKind distinguishes conversation entry types.
type EntryKind string

const (
	// EntryUser is a request sent to the agent.
	EntryUser EntryKind = "user"
	// EntryAssistant is text produced by the agent.
	EntryAssistant EntryKind = "assistant"
	// EntryToolCall records a capability invocation the agent made.
	EntryToolCall EntryKind = "tool_call"
	// EntryToolResult records the provider's response to a tool call.
	EntryToolResult EntryKind = "tool_result"
)

// Entry is one element of a role's conversation history.
type Entry struct {
	Kind       EntryKind       `json:"kind"`
	Content    string          `json:"content,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

// History is an ordered conversation log for one role.
type History []Entry

// HistoryStore holds one independent history per role. Histories grow
// monotonically across turns until reset; they are never shared between
// roles. A sliding window bounds growth: when a saved history exceeds the
// window, the oldest entries are dropped.
type HistoryStore struct {
	mu        sync.RWMutex
	histories map[models.Role]History
	window    int
}

// DefaultHistoryWindow bounds entries kept per role. Large enough to span
// many turns of tool-heavy work without growing without bound.
const DefaultHistoryWindow = 400

// NewHistoryStore creates an empty store. A window of 0 uses the default.
func NewHistoryStore(window int) *HistoryStore {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &HistoryStore{
		histories: make(map[models.Role]History),
		window:    window,
	}
}

// Get returns a copy of the role's history.
func (s *HistoryStore) Get(role models.Role) History {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.histories[role]
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Len returns the number of entries stored for the role.
func (s *HistoryStore) Len(role models.Role) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories[role])
}

// Replace saves the role's updated history, trimming the oldest entries
// once the sliding window is exceeded.
func (s *HistoryStore) Replace(role models.Role, h History) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(h) > s.window {
		h = h[len(h)-s.window:]
	}
	stored := make(History, len(h))
	copy(stored, h)
	s.histories[role] = stored
}

// Reset discards all histories. Idempotent.
func (s *HistoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[models.Role]History)
}
