package session

import (
	"context"
	"fmt"
	"sync"

	contractx "github.com/forrest321/aifi/agent/contract"
)

// Store persists conversation and thread records. Thread records are
// addressable both by (conversation, handler) pair and by record id; the
// latter serves the write-back after backend thread allocation.
type Store interface {
	LoadThread(ctx context.Context, conversationID string, handler contractx.Handler) (*ThreadRecord, error)
	LoadThreadByRecordID(ctx context.Context, recordID string) (*ThreadRecord, error)
	SaveThread(ctx context.Context, rec *ThreadRecord) error

	LoadConversation(ctx context.Context, conversationID string) (*Conversation, error)
	SaveConversation(ctx context.Context, conv *Conversation) error
}

type pairKey struct {
	conversationID string
	handler        contractx.Handler
}

// MemoryStore is the in-process Store used by tests and the demo binary.
type MemoryStore struct {
	mu            sync.RWMutex
	threads       map[pairKey]*ThreadRecord
	threadsByID   map[string]*ThreadRecord
	conversations map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:       make(map[pairKey]*ThreadRecord),
		threadsByID:   make(map[string]*ThreadRecord),
		conversations: make(map[string]*Conversation),
	}
}

func (s *MemoryStore) LoadThread(_ context.Context, conversationID string, handler contractx.Handler) (*ThreadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.threads[pairKey{conversationID, handler}]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %q handler %q", ErrThreadNotFound, conversationID, handler)
	}
	return cloneThread(rec), nil
}

func (s *MemoryStore) LoadThreadByRecordID(_ context.Context, recordID string) (*ThreadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.threadsByID[recordID]
	if !ok {
		return nil, fmt.Errorf("%w: record %q", ErrThreadNotFound, recordID)
	}
	return cloneThread(rec), nil
}

func (s *MemoryStore) SaveThread(_ context.Context, rec *ThreadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneThread(rec)
	s.threads[pairKey{rec.ConversationID, rec.Handler}] = cp
	s.threadsByID[rec.ID] = cp
	return nil
}

func (s *MemoryStore) LoadConversation(_ context.Context, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrConversationNotFound, conversationID)
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) SaveConversation(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

func cloneThread(rec *ThreadRecord) *ThreadRecord {
	cp := *rec
	if rec.Context != nil {
		cp.Context = make(map[string]any, len(rec.Context))
		for k, v := range rec.Context {
			cp.Context[k] = v
		}
	}
	return &cp
}
