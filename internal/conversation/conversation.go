// Package conversation keeps the bounded, per-user rolling history the
// webhook sends to the model with every request.
package conversation

import (
	"errors"
	"time"
)

// DefaultMaxTurns is the history bound: three user/assistant pairs.
const DefaultMaxTurns = 6

// StoreService is the service key under which a persistent store module
// registers its Store.
const StoreService = "conversation.store"

// Errors returned by Store implementations.
var (
	ErrEmptyText   = errors.New("conversation: turn text must not be empty")
	ErrInvalidRole = errors.New("conversation: invalid turn role")
)

// Role identifies who produced a turn.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a user's history. It is a value type; stores copy
// turns in and out.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserTurn builds a turn spoken by the user.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// AssistantTurn builds a turn produced by the model.
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// Validate reports whether t has a known role and non-empty text.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return ErrInvalidRole
	}
	if t.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// UserInfo summarizes one user's stored history.
type UserInfo struct {
	UserID     string    `json:"user_id"`
	Turns      int       `json:"turns"`
	LastActive time.Time `json:"last_active"`
}

// Store maps user ids to their bounded history. Implementations must be
// safe for concurrent use.
type Store interface {
	// Append adds turn to the user's history, creating it if absent, and
	// truncates to the store's bound in the same step.
	Append(userID string, turn Turn) error

	// Truncate drops all but the most recent MaxTurns entries.
	Truncate(userID string) error

	// Get returns a copy of the user's turns, oldest first. An unknown user
	// yields an empty history and no error.
	Get(userID string) ([]Turn, error)

	// Purge removes the user's history entirely.
	Purge(userID string) error

	// Prune removes every user idle for longer than maxIdle and returns how
	// many were removed.
	Prune(maxIdle time.Duration) (int, error)

	// Users lists every user with stored history, ordered by user id.
	Users() ([]UserInfo, error)

	// Len returns the number of users with stored history.
	Len() (int, error)
}

// keepLast returns the last n turns of turns, reusing the backing array.
func keepLast(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
