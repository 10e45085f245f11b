package storage

import (
	"context"
	"strconv"
	"sync"

	redisx "Chatty/service/storage/redis"
)

// UnreadStore keeps the per (viewer, peer) unread counters. Counters are a
// derived view over the durable `seen` flags; both implementations clamp at
// zero and treat reset of a missing counter as a no-op.
type UnreadStore interface {
	Incr(ctx context.Context, viewerID, peerID string) (int64, error)
	Reset(ctx context.Context, viewerID, peerID string) error
	Get(ctx context.Context, viewerID, peerID string) (int64, error)
	// Set overwrites a counter, used when rebuilding from persistence.
	Set(ctx context.Context, viewerID, peerID string, n int64) error
}

// ===== Redis 实现 =====
//
// 每个 viewer 一个 hash：chatty:unread:<viewer>，field 为 peer。

func unreadKey(viewer string) string { return "chatty:unread:" + viewer }

type RedisUnread struct{}

func NewRedisUnread() *RedisUnread { return &RedisUnread{} }

func (s *RedisUnread) Incr(ctx context.Context, viewerID, peerID string) (int64, error) {
	return redisx.Get().HIncrBy(ctx, unreadKey(viewerID), peerID, 1).Result()
}

func (s *RedisUnread) Reset(ctx context.Context, viewerID, peerID string) error {
	return redisx.Get().HDel(ctx, unreadKey(viewerID), peerID).Err()
}

func (s *RedisUnread) Get(ctx context.Context, viewerID, peerID string) (int64, error) {
	val, err := redisx.Get().HGet(ctx, unreadKey(viewerID), peerID).Result()
	if err != nil {
		return 0, nil // 缺失视作 0
	}
	n, _ := strconv.ParseInt(val, 10, 64)
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

func (s *RedisUnread) Set(ctx context.Context, viewerID, peerID string, n int64) error {
	if n <= 0 {
		return s.Reset(ctx, viewerID, peerID)
	}
	return redisx.Get().HSet(ctx, unreadKey(viewerID), peerID, n).Err()
}

// ===== 内存实现 =====
//
// 单测和未部署 Redis 的单节点用。一把读写锁足够这个量级。

type MemUnread struct {
	mu sync.RWMutex
	m  map[string]map[string]int64 // viewer -> peer -> count
}

func NewMemUnread() *MemUnread {
	return &MemUnread{m: make(map[string]map[string]int64)}
}

func (s *MemUnread) Incr(_ context.Context, viewerID, peerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := s.m[viewerID]
	if mm == nil {
		mm = make(map[string]int64)
		s.m[viewerID] = mm
	}
	mm[peerID]++
	return mm[peerID], nil
}

func (s *MemUnread) Reset(_ context.Context, viewerID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm := s.m[viewerID]; mm != nil {
		delete(mm, peerID)
		if len(mm) == 0 {
			delete(s.m, viewerID)
		}
	}
	return nil
}

func (s *MemUnread) Get(_ context.Context, viewerID, peerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if mm := s.m[viewerID]; mm != nil {
		if n := mm[peerID]; n > 0 {
			return n, nil
		}
	}
	return 0, nil
}

func (s *MemUnread) Set(_ context.Context, viewerID, peerID string, n int64) error {
	if n <= 0 {
		return s.Reset(context.Background(), viewerID, peerID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := s.m[viewerID]
	if mm == nil {
		mm = make(map[string]int64)
		s.m[viewerID] = mm
	}
	mm[peerID] = n
	return nil
}
