package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"merchdash/internal/pkg/redis"
	"merchdash/internal/service/offer/domain"
)

// RedisDraftStore 把向导草稿保存在 Redis 中，多实例部署时会话可以落在任意实例上。
// 每次读取都会刷新过期时间（滑动过期），长时间停留在某一步的用户不会丢失草稿。
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: ttl}
}

func draftKey(key domain.DraftKey) string {
	return fmt.Sprintf("offer:wizard:{%s}:draft:%s", key.Session, key.Scope())
}

func (s *RedisDraftStore) Load(ctx context.Context, key domain.DraftKey) (*domain.Draft, error) {
	raw, err := s.client.GetClient().GetEx(ctx, draftKey(key), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrDraftNotFound
		}
		return nil, errors.Wrap(err, "load draft")
	}
	var draft domain.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, errors.Wrap(err, "decode draft")
	}
	return &draft, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, key domain.DraftKey, draft *domain.Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return errors.Wrap(err, "encode draft")
	}
	if err := s.client.GetClient().Set(ctx, draftKey(key), raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "save draft")
	}
	return nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, key domain.DraftKey) error {
	if err := s.client.GetClient().Del(ctx, draftKey(key)).Err(); err != nil {
		return errors.Wrap(err, "delete draft")
	}
	return nil
}

// MemoryDraftStore 是进程内的草稿存储，用于单实例部署与测试。
type MemoryDraftStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	drafts    map[string]memoryDraft
	nextSweep time.Time
}

type memoryDraft struct {
	raw       []byte
	expiresAt time.Time
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{ttl: ttl, now: time.Now, drafts: make(map[string]memoryDraft)}
}

// 与 Redis 实现一样存 JSON 副本，调用方修改返回的草稿不会影响已保存的内容
func (s *MemoryDraftStore) Load(_ context.Context, key domain.DraftKey) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := draftKey(key)
	entry, ok := s.drafts[k]
	if !ok {
		return nil, domain.ErrDraftNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.drafts, k)
		return nil, domain.ErrDraftNotFound
	}
	entry.expiresAt = s.now().Add(s.ttl)
	s.drafts[k] = entry

	var draft domain.Draft
	if err := json.Unmarshal(entry.raw, &draft); err != nil {
		return nil, errors.Wrap(err, "decode draft")
	}
	return &draft, nil
}

func (s *MemoryDraftStore) Save(_ context.Context, key domain.DraftKey, draft *domain.Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return errors.Wrap(err, "encode draft")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	s.drafts[draftKey(key)] = memoryDraft{raw: raw, expiresAt: now.Add(s.ttl)}
	return nil
}

// sweep 清理已过期的草稿，被放弃的会话不会一直占着内存。调用方需持有锁。
func (s *MemoryDraftStore) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for k, entry := range s.drafts {
		if now.After(entry.expiresAt) {
			delete(s.drafts, k)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

func (s *MemoryDraftStore) Delete(_ context.Context, key domain.DraftKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey(key))
	return nil
}
