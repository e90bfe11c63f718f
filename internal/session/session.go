// Package session persists conversation transcripts in PostgreSQL.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// Role values for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one conversation.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn in a conversation. Route records which data source
// answered an assistant message; it is empty for user messages.
type Message struct {
	ID        int64
	SessionID uuid.UUID
	Role      string
	Content   string
	Route     string
	Sequence  int
	CreatedAt time.Time
}
