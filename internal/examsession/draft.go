package examsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Draft is the resumable part of a session: chosen options by question index, the
// current question and the seconds left on the clock.
type Draft struct {
	Answers              map[int]int `json:"answers"`
	CurrentQuestionIndex int         `json:"current_question_index"`
	TimeLeft             int         `json:"time_left"`
}

// DraftStore persists drafts between runs. Get returns nil without error when no draft exists.
type DraftStore interface {
	Get(ctx context.Context, key string) (*Draft, error)
	Set(ctx context.Context, key string, draft Draft) error
	Clear(ctx context.Context, key string) error
}

func DraftKey(examID uint) string {
	return fmt.Sprintf("exam_progress_%d", examID)
}

// MemoryDraftStore keeps encoded drafts in process memory.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string][]byte
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: map[string][]byte{}}
}

func (s *MemoryDraftStore) Get(_ context.Context, key string) (*Draft, error) {
	s.mu.Lock()
	raw, ok := s.drafts[key]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeDraft(raw)
}

func (s *MemoryDraftStore) Set(_ context.Context, key string, draft Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.drafts[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryDraftStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.drafts, key)
	s.mu.Unlock()
	return nil
}

// RedisDraftStore keeps drafts in redis so a session can resume on another machine.
type RedisDraftStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisDraftStore expires drafts after ttl; zero keeps them until cleared.
func NewRedisDraftStore(client redis.Cmdable, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: ttl}
}

func (s *RedisDraftStore) Get(ctx context.Context, key string) (*Draft, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", key, err)
	}
	return decodeDraft(raw)
}

func (s *RedisDraftStore) Set(ctx context.Context, key string, draft Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

func (s *RedisDraftStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func decodeDraft(raw []byte) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if d.Answers == nil {
		d.Answers = map[int]int{}
	}
	return &d, nil
}
