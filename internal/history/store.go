// Package history persists conversation sessions and coordinates
// concurrent access to them.
package history

import (
	"context"
	"time"
)

// Message roles stored per turn.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// MessageRecord is one stored conversation turn.
type MessageRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence boundary for conversation history.
type Store interface {
	// AppendMessages stores turns for a session in order, creating the
	// session row if needed. All turns are written in one transaction.
	AppendMessages(ctx context.Context, sessionID string, msgs ...MessageRecord) error

	// Messages returns all turns of a session ordered oldest first.
	Messages(ctx context.Context, sessionID string) ([]MessageRecord, error)

	// ClearSession removes all turns of a session. Clearing an unknown
	// or empty session is not an error.
	ClearSession(ctx context.Context, sessionID string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
