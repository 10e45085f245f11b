package chat

import (
	"context"

	"Chatty/logger"
	"Chatty/service/storage"
)

// SeenStore 是协调器信任的持久层切面：seen 标记是未读计数的事实来源。
type SeenStore interface {
	MarkSeen(ctx context.Context, viewerID, peerID string) (int64, error)
	MarkSeenOne(ctx context.Context, msgID string) error
	CountUnseen(ctx context.Context, viewerID, peerID string) (int64, error)
}

// Coordinator 维护 (viewer, peer) 的未读计数并把变化推给 viewer 的全部会话。
// 计数只增 1/清零，绝不为负；重复清零是无害空操作。
type Coordinator struct {
	reg   *Registry
	store storage.UnreadStore
	seen  SeenStore
}

func NewCoordinator(reg *Registry, store storage.UnreadStore, seen SeenStore) *Coordinator {
	return &Coordinator{reg: reg, store: store, seen: seen}
}

// OnMessageDelivered 消息送达接收方后的计数处理。
// viewerFocused 为真表示接收方正盯着发送者的会话：不加计数，立刻落库已读
// 并广播清零；否则加一并把新值推给接收方全部会话。
// 投递路径上的失败只记日志，不向触发方传播。
func (u *Coordinator) OnMessageDelivered(ctx context.Context, receiverID, senderID, msgID string, viewerFocused bool) {
	if viewerFocused {
		if err := u.seen.MarkSeenOne(ctx, msgID); err != nil {
			logger.Errorf("[unread] auto-seen persist failed msg=%s err=%v", msgID, err)
		}
		if err := u.store.Reset(ctx, receiverID, senderID); err != nil {
			logger.Errorf("[unread] reset failed viewer=%s peer=%s err=%v", receiverID, senderID, err)
		}
		u.emit(receiverID, BuildMessagesSeen(senderID, receiverID))
		return
	}

	n, err := u.store.Incr(ctx, receiverID, senderID)
	if err != nil {
		logger.Errorf("[unread] incr failed viewer=%s peer=%s err=%v", receiverID, senderID, err)
		return
	}
	u.emit(receiverID, BuildUnreadCount(senderID, n))
}

// OnMarkSeen 显式已读：落库、清零、并通知 viewer 的其它会话把角标清掉。
// 幂等；已经为零时照样广播一次清零事件。
func (u *Coordinator) OnMarkSeen(ctx context.Context, viewerID, peerID string) error {
	if _, err := u.seen.MarkSeen(ctx, viewerID, peerID); err != nil {
		return err
	}
	if err := u.store.Reset(ctx, viewerID, peerID); err != nil {
		logger.Errorf("[unread] reset failed viewer=%s peer=%s err=%v", viewerID, peerID, err)
	}
	u.emit(viewerID, BuildMessagesSeen(peerID, viewerID))
	return nil
}

// Count 当前计数（缺失视作 0，永不为负）。
func (u *Coordinator) Count(ctx context.Context, viewerID, peerID string) int64 {
	n, err := u.store.Get(ctx, viewerID, peerID)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Reconcile 以持久层 seen 标记为准重建计数（重启/对账用）。
func (u *Coordinator) Reconcile(ctx context.Context, viewerID string, peerIDs []string) {
	for _, peer := range peerIDs {
		n, err := u.seen.CountUnseen(ctx, viewerID, peer)
		if err != nil {
			logger.Errorf("[unread] reconcile count failed viewer=%s peer=%s err=%v", viewerID, peer, err)
			continue
		}
		if err := u.store.Set(ctx, viewerID, peer, n); err != nil {
			logger.Errorf("[unread] reconcile set failed viewer=%s peer=%s err=%v", viewerID, peer, err)
		}
	}
}

func (u *Coordinator) emit(userID string, payload []byte) {
	if payload == nil {
		return
	}
	for _, c := range u.reg.HandlesFor(userID) {
		c.Enqueue(payload)
	}
}
