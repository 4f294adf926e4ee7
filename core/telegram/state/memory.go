package state

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager constructs an in-memory Manager implementation. Sessions
// are ephemeral by design and do not survive a process restart.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]Session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Get returns the session for a user, or an idle session if none exists.
func (m *memoryManager) Get(userID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.sessions[userID]; ok {
		return session
	}
	return Session{State: StateIdle}
}

// SetState sets the FSM state for the given user. Setting StateIdle removes
// the session entirely, keeping the map bounded by active conversations.
func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == StateIdle {
		delete(m.sessions, userID)
		return
	}
	m.sessions[userID] = Session{State: st, UpdatedAt: time.Now()}
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

// HasState checks if a user has an active state other than idle.
func (m *memoryManager) HasState(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return ok && sess.State != StateIdle
}

// ClearState resets the user to idle.
func (m *memoryManager) ClearState(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has an active FSM state.
func (m *memoryManager) InProgress(userID int64) bool {
	return m.HasState(userID)
}

// RegisterHandler associates a state with its handler.
func (m *memoryManager) RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil || st == StateIdle {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// ManagerHandler executes the handler function registered for the user's current state, if any.
func (m *memoryManager) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return handler(c)
}
