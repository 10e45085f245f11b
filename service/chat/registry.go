package chat

import (
	"sort"
	"sync"
)

// ===== 连接注册表 =====
//
// userID -> 该用户全部活跃连接。锁粒度是“每用户一把”，不同用户的
// 上下线互不阻塞；同一用户并发连接按 slot 锁串行，不会丢注册。

type userSlot struct {
	mu    sync.Mutex
	conns map[string]*Client // connID -> client
	dead  bool               // slot 已从注册表摘除，持有者需重试
}

type Registry struct {
	slots sync.Map // userID -> *userSlot

	// onChange 由 Broadcaster 挂上；每次注册/注销后触发。
	onChange func()
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetOnChange 挂 presence 通知钩子，必须在接入流量前调用。
func (r *Registry) SetOnChange(fn func()) { r.onChange = fn }

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Register binds the client to its user. Multiple clients per user are fine.
func (r *Registry) Register(c *Client) {
	if c == nil || c.UserID == "" {
		return
	}
	for {
		v, _ := r.slots.LoadOrStore(c.UserID, &userSlot{conns: make(map[string]*Client)})
		slot := v.(*userSlot)
		slot.mu.Lock()
		if slot.dead {
			// 摘除竞态：换新 slot 重试
			slot.mu.Unlock()
			continue
		}
		slot.conns[c.ConnID] = c
		slot.mu.Unlock()
		break
	}
	r.notify()
}

// Unregister removes the binding. Unknown handles are a no-op, not an error.
// Removal is complete before this returns: a presence snapshot taken
// afterwards never reports the handle.
func (r *Registry) Unregister(c *Client) {
	if c == nil || c.UserID == "" {
		return
	}
	v, ok := r.slots.Load(c.UserID)
	if !ok {
		return
	}
	slot := v.(*userSlot)
	slot.mu.Lock()
	if _, ok := slot.conns[c.ConnID]; !ok {
		slot.mu.Unlock()
		return
	}
	delete(slot.conns, c.ConnID)
	if len(slot.conns) == 0 {
		slot.dead = true
		r.slots.CompareAndDelete(c.UserID, v)
	}
	slot.mu.Unlock()
	r.notify()
}

// HandlesFor returns all live sessions of the user (copy, safe to range).
func (r *Registry) HandlesFor(userID string) []*Client {
	v, ok := r.slots.Load(userID)
	if !ok {
		return nil
	}
	slot := v.(*userSlot)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	out := make([]*Client, 0, len(slot.conns))
	for _, c := range slot.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	v, ok := r.slots.Load(userID)
	if !ok {
		return false
	}
	slot := v.(*userSlot)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return len(slot.conns) > 0
}

// OnlineUsers 当前在线用户全量快照（排序稳定，便于对比/测试）。
func (r *Registry) OnlineUsers() []string {
	var out []string
	r.slots.Range(func(k, v any) bool {
		slot := v.(*userSlot)
		slot.mu.Lock()
		n := len(slot.conns)
		slot.mu.Unlock()
		if n > 0 {
			out = append(out, k.(string))
		}
		return true
	})
	sort.Strings(out)
	return out
}

// AllClients 全部活跃连接快照（presence 广播用）。
func (r *Registry) AllClients() []*Client {
	var out []*Client
	r.slots.Range(func(_, v any) bool {
		slot := v.(*userSlot)
		slot.mu.Lock()
		for _, c := range slot.conns {
			out = append(out, c)
		}
		slot.mu.Unlock()
		return true
	})
	return out
}

// AnyFocusedOn reports whether any of the user's sessions currently views peer.
func (r *Registry) AnyFocusedOn(userID, peer string) bool {
	if peer == "" {
		return false
	}
	for _, c := range r.HandlesFor(userID) {
		if c.Focus() == peer {
			return true
		}
	}
	return false
}
