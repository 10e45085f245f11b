package chat

import (
	"encoding/json"
	"time"

	chatmodel "Chatty/module/chat/model"
	usermodel "Chatty/module/user/model"
	"Chatty/tools/errs"
)

// ===== 线协议 =====
//
// 统一 {event, data} JSON 帧。事件名是对外契约，客户端按名分发。

const (
	// server -> client
	EventConnected    = "connected"            // {connId}，握手回执
	EventOnlineUsers  = "getOnlineUsers"       // 全量替换在线列表
	EventNewMessage   = "newMessage"           // EnrichedMessage
	EventMessagesSeen = "messagesMarkedAsSeen" // {chatUserId, userId}
	EventUnreadCount  = "unreadCount"          // {peerId, count}

	// client -> server
	EventFocus = "focus" // {peerId}，空串表示取消选中
)

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errs.New("frame has no event")
	}
	return &f, nil
}

// EnrichedMessage 是广播给会话的消息载荷：消息本体 + 发送者展示字段。
// FromSelf 按“每份投递”打标，不落库。
type EnrichedMessage struct {
	ID               string    `json:"id"`
	SenderID         string    `json:"senderId"`
	ReceiverID       string    `json:"receiverId"`
	Text             string    `json:"text,omitempty"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	SenderName       string    `json:"senderName"`
	SenderProfilePic string    `json:"senderProfilePic"`
	FromSelf         bool      `json:"fromSelf"`
	Seen             bool      `json:"seen"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewEnriched denormalizes the sender's display fields onto the message.
func NewEnriched(m *chatmodel.Message, sender *usermodel.User) EnrichedMessage {
	return EnrichedMessage{
		ID:               m.MsgID,
		SenderID:         m.SenderID,
		ReceiverID:       m.ReceiverID,
		Text:             m.Text,
		ImageURL:         m.ImageURL,
		SenderName:       senderDisplayName(sender),
		SenderProfilePic: sender.AvatarURL(),
		Seen:             m.Seen,
		CreatedAt:        m.CreateTime,
	}
}

func senderDisplayName(u *usermodel.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

type MessagesSeenPayload struct {
	ChatUserID string `json:"chatUserId"` // 被标记已读的对端
	UserID     string `json:"userId"`     // 执行标记的观看者
}

type UnreadCountPayload struct {
	PeerID string `json:"peerId"`
	Count  int64  `json:"count"`
}

type FocusPayload struct {
	PeerID string `json:"peerId"`
}

// ConnectedPayload 握手回执：客户端发 HTTP 请求时带上 connId，
// 服务端据此跳过发起方连接的回显。
type ConnectedPayload struct {
	ConnID string `json:"connId"`
	UserID string `json:"userId"`
}

// DeliverEnvelope 跨节点转发用：原始投递（FromSelf 由各节点按目标会话决定）。
type DeliverEnvelope struct {
	OriginGw     string          `json:"originGw"`
	OriginConnID string          `json:"originConnId"`
	Message      EnrichedMessage `json:"message"`
}

// ---- 帧构造 ----

func buildFrame(event string, data any) []byte {
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	out, err := json.Marshal(Frame{Event: event, Data: b})
	if err != nil {
		return nil
	}
	return out
}

func BuildConnected(connID, userID string) []byte {
	return buildFrame(EventConnected, ConnectedPayload{ConnID: connID, UserID: userID})
}

func BuildOnlineUsers(users []string) []byte {
	if users == nil {
		users = []string{}
	}
	return buildFrame(EventOnlineUsers, users)
}

func BuildNewMessage(em EnrichedMessage) []byte {
	return buildFrame(EventNewMessage, em)
}

func BuildMessagesSeen(chatUserID, userID string) []byte {
	return buildFrame(EventMessagesSeen, MessagesSeenPayload{ChatUserID: chatUserID, UserID: userID})
}

func BuildUnreadCount(peerID string, count int64) []byte {
	return buildFrame(EventUnreadCount, UnreadCountPayload{PeerID: peerID, Count: count})
}
