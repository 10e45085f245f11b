package storage

import (
	"context"
	"sync"
	"testing"
)

func TestMemUnreadBasics(t *testing.T) {
	s := NewMemUnread()
	ctx := context.Background()

	if n, _ := s.Get(ctx, "bob", "alice"); n != 0 {
		t.Fatalf("missing counter = %d, want 0", n)
	}

	if n, _ := s.Incr(ctx, "bob", "alice"); n != 1 {
		t.Fatalf("first incr = %d, want 1", n)
	}
	if n, _ := s.Incr(ctx, "bob", "alice"); n != 2 {
		t.Fatalf("second incr = %d, want 2", n)
	}

	if err := s.Reset(ctx, "bob", "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := s.Get(ctx, "bob", "alice"); n != 0 {
		t.Fatalf("after reset = %d, want 0", n)
	}

	// 对不存在的计数 reset 是空操作
	if err := s.Reset(ctx, "bob", "nobody"); err != nil {
		t.Fatalf("reset missing: %v", err)
	}
}

func TestMemUnreadSetClampsAtZero(t *testing.T) {
	s := NewMemUnread()
	ctx := context.Background()

	_ = s.Set(ctx, "bob", "alice", 7)
	if n, _ := s.Get(ctx, "bob", "alice"); n != 7 {
		t.Fatalf("set = %d, want 7", n)
	}

	_ = s.Set(ctx, "bob", "alice", -3)
	if n, _ := s.Get(ctx, "bob", "alice"); n != 0 {
		t.Fatalf("negative set must clamp to 0, got %d", n)
	}
}

func TestMemUnreadConcurrentIncr(t *testing.T) {
	s := NewMemUnread()
	ctx := context.Background()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := s.Incr(ctx, "bob", "alice"); err != nil {
					t.Errorf("incr: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if n, _ := s.Get(ctx, "bob", "alice"); n != workers*perWorker {
		t.Fatalf("count = %d, want %d", n, workers*perWorker)
	}
}
