package workflow

import (
	"context"
	"errors"
	"sync"
)

// ErrStateNotFound is returned when a conversation has no open workflow.
var ErrStateNotFound = errors.New("workflow not found")

// Store persists workflow records keyed by conversation id. The open slot
// holds a conversation's current workflow, failed ones included so their
// error context stays readable; Close archives a record and frees the slot.
type Store interface {
	LoadOpen(ctx context.Context, conversationID string) (*Workflow, error)
	SaveOpen(ctx context.Context, w *Workflow) error
	// Close archives a terminal workflow and frees the conversation's open slot.
	Close(ctx context.Context, w *Workflow) error
}

// MemoryStore is the in-process Store used in tests and for single-node
// deployments without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	open   map[string]*Workflow
	closed []*Workflow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{open: make(map[string]*Workflow)}
}

func (s *MemoryStore) LoadOpen(_ context.Context, conversationID string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.open[conversationID]
	if !ok {
		return nil, ErrStateNotFound
	}
	cp := cloneWorkflow(w)
	return cp, nil
}

func (s *MemoryStore) SaveOpen(_ context.Context, w *Workflow) error {
	if w == nil {
		return errors.New("nil workflow")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open[w.ConversationID] = cloneWorkflow(w)
	return nil
}

func (s *MemoryStore) Close(_ context.Context, w *Workflow) error {
	if w == nil {
		return errors.New("nil workflow")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = append(s.closed, cloneWorkflow(w))
	if cur, ok := s.open[w.ConversationID]; ok && cur.ID == w.ID {
		delete(s.open, w.ConversationID)
	}
	return nil
}

// Closed returns archived terminal workflows for a conversation, oldest first.
func (s *MemoryStore) Closed(conversationID string) []*Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Workflow
	for _, w := range s.closed {
		if w.ConversationID == conversationID {
			out = append(out, cloneWorkflow(w))
		}
	}
	return out
}

func cloneWorkflow(w *Workflow) *Workflow {
	cp := *w
	cp.StepData = cloneMap(w.StepData)
	cp.Data = cloneMap(w.Data)
	cp.CompletedSteps = append([]string(nil), w.CompletedSteps...)
	if w.ErrorState != nil {
		es := *w.ErrorState
		cp.ErrorState = &es
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
