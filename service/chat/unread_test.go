package chat

import (
	"context"
	"encoding/json"
	"testing"

	"Chatty/service/storage"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *Registry, *fakeSeen, *storage.MemUnread) {
	t.Helper()
	reg := NewRegistry()
	seen := &fakeSeen{unseen: map[[2]string]int64{}}
	store := storage.NewMemUnread()
	return NewCoordinator(reg, store, seen), reg, seen, store
}

func TestUnreadIncrementPushedToAllSessions(t *testing.T) {
	u, reg, _, _ := newTestCoordinator(t)
	s1 := newTestClient("b1", "bob")
	s2 := newTestClient("b2", "bob")
	reg.Register(s1)
	reg.Register(s2)

	u.OnMessageDelivered(context.Background(), "bob", "alice", "m1", false)

	for _, c := range []*Client{s1, s2} {
		counts := framesOf(drainFrames(t, c), EventUnreadCount)
		if len(counts) != 1 {
			t.Fatalf("session %s got %d unreadCount frames, want 1", c.ConnID, len(counts))
		}
		var p UnreadCountPayload
		if err := json.Unmarshal(counts[0].Data, &p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.PeerID != "alice" || p.Count != 1 {
			t.Fatalf("payload = %+v, want peer=alice count=1", p)
		}
	}
}

func TestUnreadFocusedDeliveryResets(t *testing.T) {
	u, reg, seen, store := newTestCoordinator(t)
	s := newTestClient("b1", "bob")
	reg.Register(s)

	// 先积累两条，再来一条 focused 投递：清零 + 落库已读
	u.OnMessageDelivered(context.Background(), "bob", "alice", "m1", false)
	u.OnMessageDelivered(context.Background(), "bob", "alice", "m2", false)
	u.OnMessageDelivered(context.Background(), "bob", "alice", "m3", true)

	if n, _ := store.Get(context.Background(), "bob", "alice"); n != 0 {
		t.Fatalf("count after focused delivery = %d, want 0", n)
	}
	if len(seen.markedOne) != 1 || seen.markedOne[0] != "m3" {
		t.Fatalf("markedOne = %v, want [m3]", seen.markedOne)
	}
	frames := drainFrames(t, s)
	if got := framesOf(frames, EventMessagesSeen); len(got) != 1 {
		t.Fatalf("expected one seen frame, got %d", len(got))
	}
}

func TestUnreadMarkSeenIdempotent(t *testing.T) {
	u, reg, seen, store := newTestCoordinator(t)
	s := newTestClient("b1", "bob")
	reg.Register(s)

	u.OnMessageDelivered(context.Background(), "bob", "alice", "m1", false)

	if err := u.OnMarkSeen(context.Background(), "bob", "alice"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	// 已经为零：重复清零是无害空操作，事件照发
	if err := u.OnMarkSeen(context.Background(), "bob", "alice"); err != nil {
		t.Fatalf("repeat mark seen: %v", err)
	}

	if n, _ := store.Get(context.Background(), "bob", "alice"); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	if len(seen.markedPair) != 2 {
		t.Fatalf("persist calls = %d, want 2", len(seen.markedPair))
	}
	frames := drainFrames(t, s)
	if got := framesOf(frames, EventMessagesSeen); len(got) != 2 {
		t.Fatalf("seen frames = %d, want 2", len(got))
	}
}

func TestUnreadCountNeverNegative(t *testing.T) {
	u, _, _, store := newTestCoordinator(t)

	if n := u.Count(context.Background(), "bob", "alice"); n != 0 {
		t.Fatalf("missing pair = %d, want 0", n)
	}
	_ = store.Reset(context.Background(), "bob", "alice")
	if n := u.Count(context.Background(), "bob", "alice"); n != 0 {
		t.Fatalf("reset-before-incr = %d, want 0", n)
	}
}

func TestUnreadReconcileFromSeenFlags(t *testing.T) {
	u, _, seen, store := newTestCoordinator(t)
	seen.unseen[[2]string{"bob", "alice"}] = 5
	seen.unseen[[2]string{"bob", "carol"}] = 0

	// 缓存里的残值以持久层为准覆盖
	_ = store.Set(context.Background(), "bob", "alice", 1)
	_ = store.Set(context.Background(), "bob", "carol", 9)

	u.Reconcile(context.Background(), "bob", []string{"alice", "carol"})

	if n, _ := store.Get(context.Background(), "bob", "alice"); n != 5 {
		t.Fatalf("alice count = %d, want 5", n)
	}
	if n, _ := store.Get(context.Background(), "bob", "carol"); n != 0 {
		t.Fatalf("carol count = %d, want 0", n)
	}
}
