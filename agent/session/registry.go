package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/forrest321/aifi/agent/contract"
)

// ThreadHandle is what GetOrCreateThread hands the caller. ThreadID is empty
// when IsNew is set; the caller allocates a backend thread and writes it back
// through SetThreadID.
type ThreadHandle struct {
	RecordID string
	ThreadID string
	IsNew    bool
	Context  map[string]any
}

// Registry maps (conversation, handler) pairs to generation threads and
// tracks per-conversation handler ownership.
type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) (*Registry, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	return &Registry{store: store, now: time.Now}, nil
}

// GetOrCreateThread returns the thread record for the pair, bumping LastUsed
// on reuse. When none exists it inserts a placeholder with an empty thread id
// and reports IsNew. Two concurrent first uses may both insert; the duplicate
// is harmless and either record may win.
func (r *Registry) GetOrCreateThread(ctx context.Context, conversationID string, handler contractx.Handler) (ThreadHandle, error) {
	if conversationID == "" {
		return ThreadHandle{}, fmt.Errorf("%w: empty conversation id", contractx.ErrValidation)
	}

	rec, err := r.store.LoadThread(ctx, conversationID, handler)
	switch {
	case err == nil:
		rec.LastUsed = r.now()
		if err := r.store.SaveThread(ctx, rec); err != nil {
			return ThreadHandle{}, fmt.Errorf("refresh thread record: %w", err)
		}
		return ThreadHandle{RecordID: rec.ID, ThreadID: rec.ThreadID, Context: rec.Context}, nil
	case errors.Is(err, ErrThreadNotFound):
		// fall through to create
	default:
		return ThreadHandle{}, fmt.Errorf("lookup thread record: %w", err)
	}

	now := r.now()
	rec = &ThreadRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Handler:        handler,
		CreatedAt:      now,
		LastUsed:       now,
	}
	if err := r.store.SaveThread(ctx, rec); err != nil {
		return ThreadHandle{}, fmt.Errorf("insert thread record: %w", err)
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Str("handler", string(handler)).
		Str("record_id", rec.ID).
		Msg("allocated thread record")

	return ThreadHandle{RecordID: rec.ID, IsNew: true}, nil
}

// SetThreadID writes the backend-allocated thread id onto a placeholder
// record created by GetOrCreateThread.
func (r *Registry) SetThreadID(ctx context.Context, recordID, threadID string) error {
	if threadID == "" {
		return fmt.Errorf("%w: empty thread id", contractx.ErrValidation)
	}

	rec, err := r.store.LoadThreadByRecordID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load thread record for write-back: %w", err)
	}
	rec.ThreadID = threadID
	rec.LastUsed = r.now()
	if err := r.store.SaveThread(ctx, rec); err != nil {
		return fmt.Errorf("write back thread id: %w", err)
	}
	return nil
}

// Conversation loads the routing record, or nil when the conversation has
// never been assigned a handler.
func (r *Registry) Conversation(ctx context.Context, conversationID string) (*Conversation, error) {
	conv, err := r.store.LoadConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// UpdateConversationHandler records which handler owns the conversation and,
// optionally, the thread it is speaking on. Creates the conversation record
// on first assignment.
func (r *Registry) UpdateConversationHandler(ctx context.Context, conversationID string, handler contractx.Handler, activeThreadID string) error {
	now := r.now()

	conv, err := r.store.LoadConversation(ctx, conversationID)
	switch {
	case err == nil:
	case errors.Is(err, ErrConversationNotFound):
		conv = &Conversation{ID: conversationID, CreatedAt: now}
	default:
		return fmt.Errorf("load conversation: %w", err)
	}

	if conv.CurrentHandler != "" && conv.CurrentHandler != handler {
		conv.LastHandoff = now
	}
	conv.CurrentHandler = handler
	if activeThreadID != "" {
		conv.ActiveThreadID = activeThreadID
	}
	conv.UpdatedAt = now

	if err := r.store.SaveConversation(ctx, conv); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
