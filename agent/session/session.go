// Package session tracks which durable generation thread serves each
// (conversation, handler) pair, and which handler currently owns a
// conversation. Records are created lazily on first use and never deleted.
package session

import (
	"errors"
	"time"

	contractx "github.com/forrest321/aifi/agent/contract"
)

var (
	ErrThreadNotFound       = errors.New("thread record not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Conversation is the per-conversation routing record. CurrentHandler is
// empty until the dispatch pipeline assigns one.
type Conversation struct {
	ID             string            `json:"id"`
	CurrentHandler contractx.Handler `json:"current_handler,omitempty"`
	ActiveThreadID string            `json:"active_thread_id,omitempty"`
	LastHandoff    time.Time         `json:"last_handoff,omitzero"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ThreadRecord binds one (conversation, handler) pair to a backend thread.
// ThreadID stays empty between allocation and the write-back that follows
// thread creation in the generation backend.
type ThreadRecord struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Handler        contractx.Handler `json:"handler"`
	ThreadID       string            `json:"thread_id,omitempty"`
	Context        map[string]any    `json:"context,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastUsed       time.Time         `json:"last_used"`
}
