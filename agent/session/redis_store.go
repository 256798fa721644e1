package session

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/forrest321/aifi/agent/contract"
	statex "github.com/forrest321/aifi/agent/state"
)

const (
	threadKeyPrefix = "aifi:thread:"
	recordKeyPrefix = "aifi:threadrec:"
	convKeyPrefix   = "aifi:conv:"
)

// RedisStore persists session records in the shared Upstash keyed store.
// Thread records live under the pair key; a secondary record-id key points
// back at the pair so write-backs can find the record without the pair.
type RedisStore struct {
	kv *statex.Client
}

func NewRedisStore(kv *statex.Client) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("session: nil state client")
	}
	return &RedisStore{kv: kv}, nil
}

type recordPointer struct {
	ConversationID string            `json:"conversation_id"`
	Handler        contractx.Handler `json:"handler"`
}

func threadKey(conversationID string, handler contractx.Handler) string {
	return threadKeyPrefix + conversationID + ":" + string(handler)
}

func (s *RedisStore) LoadThread(ctx context.Context, conversationID string, handler contractx.Handler) (*ThreadRecord, error) {
	var rec ThreadRecord
	if err := s.kv.GetJSON(ctx, threadKey(conversationID, handler), &rec); err != nil {
		if errors.Is(err, statex.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: conversation %q handler %q", ErrThreadNotFound, conversationID, handler)
		}
		return nil, fmt.Errorf("load thread record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) LoadThreadByRecordID(ctx context.Context, recordID string) (*ThreadRecord, error) {
	var ptr recordPointer
	if err := s.kv.GetJSON(ctx, recordKeyPrefix+recordID, &ptr); err != nil {
		if errors.Is(err, statex.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: record %q", ErrThreadNotFound, recordID)
		}
		return nil, fmt.Errorf("load record pointer: %w", err)
	}
	return s.LoadThread(ctx, ptr.ConversationID, ptr.Handler)
}

func (s *RedisStore) SaveThread(ctx context.Context, rec *ThreadRecord) error {
	if err := s.kv.SetJSON(ctx, threadKey(rec.ConversationID, rec.Handler), rec); err != nil {
		return fmt.Errorf("save thread record: %w", err)
	}
	ptr := recordPointer{ConversationID: rec.ConversationID, Handler: rec.Handler}
	if err := s.kv.SetJSON(ctx, recordKeyPrefix+rec.ID, ptr); err != nil {
		return fmt.Errorf("save record pointer: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	if err := s.kv.GetJSON(ctx, convKeyPrefix+conversationID, &conv); err != nil {
		if errors.Is(err, statex.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrConversationNotFound, conversationID)
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &conv, nil
}

func (s *RedisStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	if err := s.kv.SetJSON(ctx, convKeyPrefix+conv.ID, conv); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
