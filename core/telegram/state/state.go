// Package state provides a lightweight FSM/session manager for Telegram bots.
// It is intentionally domain-agnostic so it can be reused across bots.
package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	// Users without a session are implicitly idle.
	StateIdle State = "idle"
)

// Session stores conversation state for one user.
type Session struct {
	State     State
	UpdatedAt time.Time
}

// Manager orchestrates user sessions and FSM state transitions. All methods
// are safe for concurrent use from different users' update handlers.
type Manager interface {
	Get(userID int64) Session
	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	ClearState(userID int64)

	// InProgress reports whether the user currently has an active FSM state.
	InProgress(userID int64) bool

	// RegisterHandler associates a state with the handler that consumes the
	// next update from users in that state.
	RegisterHandler(st State, h tele.HandlerFunc)

	// ManagerHandler executes the handler registered for the user's current
	// state, if any.
	ManagerHandler(c tele.Context) error
}
