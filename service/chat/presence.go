package chat

import (
	"sync"
)

// Broadcaster derives the online-user set from the registry and pushes it
// to every connected session as a full replacement. Full snapshots over
// diffs: a missed snapshot self-heals on the next change, a missed diff
// would desynchronize a client for good. Best-effort, no acks.
type Broadcaster struct {
	reg    *Registry
	fanout *Fanout

	kick     chan struct{} // coalescing trigger
	stopOnce sync.Once
	stop     chan struct{}
}

func NewBroadcaster(reg *Registry, fanout *Fanout) *Broadcaster {
	b := &Broadcaster{
		reg:    reg,
		fanout: fanout,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	reg.SetOnChange(b.Notify)
	go b.loop()
	return b
}

// Notify schedules a broadcast. Calls collapse: many registry changes in a
// burst produce at least one snapshot computed after the last of them.
func (b *Broadcaster) Notify() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *Broadcaster) loop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.kick:
			b.BroadcastOnce()
		}
	}
}

// BroadcastOnce snapshots the registry and pushes the full online list to
// every session. The snapshot is taken after any unregister that triggered
// it, so a disconnected handle is never reported online.
func (b *Broadcaster) BroadcastOnce() {
	payload := BuildOnlineUsers(b.reg.OnlineUsers())
	b.fanout.Broadcast(b.reg.AllClients(), payload)
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}
