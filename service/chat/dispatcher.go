package chat

import (
	"context"

	"Chatty/logger"
	chatmodel "Chatty/module/chat/model"
	usermodel "Chatty/module/user/model"
	"Chatty/service/storage"
)

// SenderLookup resolves a user's display fields for enrichment.
type SenderLookup interface {
	FindByID(ctx context.Context, userID string) (*usermodel.User, error)
}

// Relay replicates deliveries to sessions homed on other gateway nodes.
// Nil means single-node deployment.
type Relay interface {
	PublishDeliver(env DeliverEnvelope) error
}

// Dispatcher fans out a persisted message: every receiver session gets one
// fromSelf=false copy, every sender session except the originating one gets
// one fromSelf=true copy. The originating session relies on the HTTP
// response instead of a socket echo. An offline receiver is silent success.
type Dispatcher struct {
	reg    *Registry
	users  SenderLookup
	unread *Coordinator
	relay  Relay
	gwID   string
}

func NewDispatcher(reg *Registry, users SenderLookup, unread *Coordinator, relay Relay, gwID string) *Dispatcher {
	return &Dispatcher{reg: reg, users: users, unread: unread, relay: relay, gwID: gwID}
}

// Dispatch is called exactly once per successfully persisted message.
// A sender lookup failure aborts enrichment and fan-out (the message stays
// durable); push failures to individual sessions never surface.
func (d *Dispatcher) Dispatch(ctx context.Context, m *chatmodel.Message, originConnID string) error {
	sender, err := d.users.FindByID(ctx, m.SenderID)
	if err != nil {
		return err
	}
	em := NewEnriched(m, sender)

	d.deliverLocal(em, originConnID)

	// 未读计数：接收方任一本地会话盯着发送者即 auto-seen。
	// 跨节点的 focus 不可见，退化为普通未读，下次拉会话时对账。
	focused := d.reg.AnyFocusedOn(m.ReceiverID, m.SenderID)
	d.unread.OnMessageDelivered(ctx, m.ReceiverID, m.SenderID, m.MsgID, focused)

	if d.relay != nil && !d.bothHomedHere(ctx, m.SenderID, m.ReceiverID) {
		env := DeliverEnvelope{OriginGw: d.gwID, OriginConnID: originConnID, Message: em}
		if err := d.relay.PublishDeliver(env); err != nil {
			// 转发失败不回滚本地投递；远端会话错过的消息靠下次全量拉取
			logger.Errorf("[dispatch] relay publish failed msg=%s err=%v", m.MsgID, err)
		}
	}
	return nil
}

// bothHomedHere 查 presence 镜像：双方都落在本节点时免发信封。
// 镜像是 best-effort，查不到或出错一律按“可能在远端”处理（照常发布）。
func (d *Dispatcher) bothHomedHere(ctx context.Context, senderID, receiverID string) bool {
	for _, user := range []string{senderID, receiverID} {
		gw, online, err := storage.PresenceLookup(ctx, user)
		if err != nil || !online || gw != d.gwID {
			return false
		}
	}
	return true
}

// DeliverRemote applies an envelope from another gateway to local sessions.
func (d *Dispatcher) DeliverRemote(env DeliverEnvelope) {
	if env.OriginGw == d.gwID {
		return
	}
	d.deliverLocal(env.Message, env.OriginConnID)
}

// deliverLocal pushes per-delivery copies into local session queues.
// fromSelf is stamped per copy, never on the stored message.
func (d *Dispatcher) deliverLocal(em EnrichedMessage, originConnID string) {
	em.FromSelf = false
	toReceiver := BuildNewMessage(em)
	for _, c := range d.reg.HandlesFor(em.ReceiverID) {
		c.Enqueue(toReceiver)
	}

	em.FromSelf = true
	toSelf := BuildNewMessage(em)
	for _, c := range d.reg.HandlesFor(em.SenderID) {
		if c.ConnID == originConnID {
			continue // the origin already has its local append
		}
		c.Enqueue(toSelf)
	}
}
