package chat

import (
	"encoding/json"
	"testing"
	"time"
)

// waitOnlineSnapshot 等到会话收到内容等于 want 的在线列表快照。
// presence 广播是合并触发的异步路径，中间快照可能被跳过，只认最终值。
func waitOnlineSnapshot(t *testing.T, c *Client, want []string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.Send:
			f, err := ParseFrame(raw)
			if err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if f.Event != EventOnlineUsers {
				continue
			}
			var users []string
			if err := json.Unmarshal(f.Data, &users); err != nil {
				t.Fatalf("decode snapshot: %v", err)
			}
			if equalStrings(users, want) {
				return
			}
		case <-deadline:
			t.Fatalf("no snapshot %v arrived", want)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPresenceBroadcastFullReplacement(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, NewFanout(1, 16))
	defer b.Stop()

	a := newTestClient("a1", "alice")
	reg.Register(a)
	waitOnlineSnapshot(t, a, []string{"alice"})

	bob := newTestClient("b1", "bob")
	reg.Register(bob)
	waitOnlineSnapshot(t, a, []string{"alice", "bob"})
	waitOnlineSnapshot(t, bob, []string{"alice", "bob"})
}

func TestPresenceNeverReportsDeadHandle(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, NewFanout(1, 16))
	defer b.Stop()

	a := newTestClient("a1", "alice")
	bob := newTestClient("b1", "bob")
	reg.Register(a)
	reg.Register(bob)
	waitOnlineSnapshot(t, a, []string{"alice", "bob"})

	// 注销在通知之前完成：之后的快照绝不能再含 bob
	reg.Unregister(bob)
	waitOnlineSnapshot(t, a, []string{"alice"})

	b.BroadcastOnce()
	waitOnlineSnapshot(t, a, []string{"alice"})
}

func TestPresenceSnapshotIsSortedAndComplete(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, NewFanout(2, 16))
	defer b.Stop()

	watcher := newTestClient("w1", "watcher")
	reg.Register(watcher)
	for _, u := range []string{"zoe", "adam", "mia"} {
		reg.Register(newTestClient("c-"+u, u))
	}

	// 多次变更合并后，最终快照是排好序的全量列表
	waitOnlineSnapshot(t, watcher, []string{"adam", "mia", "watcher", "zoe"})
}

func TestPresenceNotifyCoalesces(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, NewFanout(1, 16))
	defer b.Stop()

	a := newTestClient("a1", "alice")
	reg.Register(a)
	waitOnlineSnapshot(t, a, []string{"alice"})

	// 背靠背触发可以合并，但最后一次触发之后必须再出一份快照
	for i := 0; i < 50; i++ {
		b.Notify()
	}
	waitOnlineSnapshot(t, a, []string{"alice"})
}
