package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	statex "github.com/forrest321/aifi/agent/state"
)

const (
	openKeyPrefix   = "aifi:wf:open:"
	closedKeyPrefix = "aifi:wf:done:"
)

// RedisStore persists workflow records in the shared Upstash keyed store.
// The open slot lives at one key per conversation, so the storage layer
// itself enforces the at-most-one-open-workflow invariant.
type RedisStore struct {
	kv *statex.Client
}

func NewRedisStore(kv *statex.Client) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("state client is required")
	}
	return &RedisStore{kv: kv}, nil
}

func (s *RedisStore) LoadOpen(ctx context.Context, conversationID string) (*Workflow, error) {
	key, err := openKey(conversationID)
	if err != nil {
		return nil, err
	}

	var w Workflow
	if err := s.kv.GetJSON(ctx, key, &w); err != nil {
		if errors.Is(err, statex.ErrKeyNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *RedisStore) SaveOpen(ctx context.Context, w *Workflow) error {
	if w == nil {
		return errors.New("nil workflow")
	}
	key, err := openKey(w.ConversationID)
	if err != nil {
		return err
	}
	return s.kv.SetJSON(ctx, key, w)
}

func (s *RedisStore) Close(ctx context.Context, w *Workflow) error {
	if w == nil {
		return errors.New("nil workflow")
	}
	if err := s.kv.SetJSON(ctx, closedKeyPrefix+w.ConversationID+":"+w.ID, w); err != nil {
		return err
	}

	key, err := openKey(w.ConversationID)
	if err != nil {
		return err
	}

	// Only free the slot when it still holds this workflow; a fresh record
	// may already have replaced it during a type-changing handoff.
	var cur Workflow
	switch err := s.kv.GetJSON(ctx, key, &cur); {
	case errors.Is(err, statex.ErrKeyNotFound):
		return nil
	case err != nil:
		return err
	}
	if cur.ID != w.ID {
		return nil
	}
	return s.kv.Delete(ctx, key)
}

func openKey(conversationID string) (string, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", fmt.Errorf("conversation id is empty")
	}
	return openKeyPrefix + conversationID, nil
}
