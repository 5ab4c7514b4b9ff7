package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one page-lifetime's conversation context. A fresh session is
// minted on every startup and is never persisted across restarts; only
// explicit saves outlive it.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession mints a session with an opaque token id.
func NewSession() Session {
	return Session{
		ID:        fmt.Sprintf("medai-%s", uuid.New().String()),
		CreatedAt: time.Now(),
	}
}

// SavedSession is one entry in the durable saved-session collection. Entries
// are append-only; saving never overwrites a prior save.
type SavedSession struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}
