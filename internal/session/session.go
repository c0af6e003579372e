package session

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrRunInProgress indicates a turn was started while another run holds
// the session.
var ErrRunInProgress = errors.New("an orchestration run is already in progress for this session")

// Session is the state handle threaded through one conversation: the
// per-role histories plus the shared cross-task state. One orchestration
// run owns the session at a time.
type Session struct {
	ID        string
	Histories *HistoryStore
	State     *SharedState

	busy atomic.Bool
}

// New creates a fresh session with an empty state.
// A historyWindow of 0 uses the default sliding window.
func New(historyWindow int) *Session {
	return &Session{
		ID:        uuid.New().String()[:8],
		Histories: NewHistoryStore(historyWindow),
		State:     NewSharedState(),
	}
}

// BeginRun claims the session for one orchestration run. Returns
// ErrRunInProgress if another run holds it.
func (s *Session) BeginRun() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	return nil
}

// EndRun releases the session.
func (s *Session) EndRun() {
	s.busy.Store(false)
}

// Reset discards all role histories and clears shared state. Idempotent;
// accumulated state from completed turns is lost.
func (s *Session) Reset() {
	s.Histories.Reset()
	s.State.Reset()
}
