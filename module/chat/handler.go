package chat

import (
	"context"
	"net/http"

	"Chatty/logger"
	midsec "Chatty/middleware/security"
	msgstore "Chatty/module/chat/message"
	chatmodel "Chatty/module/chat/model"
	usermodel "Chatty/module/user/model"
	userservice "Chatty/module/user/service"
	chatsvc "Chatty/service/chat"

	"github.com/gin-gonic/gin"
)

// Uploader 把内联图片载荷换成可长期访问的URL。真实实现接对象存储/
// 图床；默认实现原样返回（已经是URL的场景）。
type Uploader interface {
	Upload(ctx context.Context, payload string) (string, error)
}

type PassthroughUploader struct{}

func (PassthroughUploader) Upload(_ context.Context, payload string) (string, error) {
	return payload, nil
}

// Handler 消息 HTTP 入口。持久化成功后才触碰 core（Dispatch/MarkSeen）。
type Handler struct {
	Messages *msgstore.Store
	Users    *userservice.Store
	Core     *chatsvc.Server
	Upload   Uploader
}

func NewHandler(messages *msgstore.Store, users *userservice.Store, core *chatsvc.Server, up Uploader) *Handler {
	if up == nil {
		up = PassthroughUploader{}
	}
	return &Handler{Messages: messages, Users: users, Core: core, Upload: up}
}

type sendReq struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// sidebarUser 侧边栏条目：用户 + 对端未读数。
type sidebarUser struct {
	ID          string `json:"_id"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	ProfilePic  string `json:"profilePic"`
	UnreadCount int64  `json:"unreadCount"`
}

// GetUsersForSidebar GET /api/messages/users
func (h *Handler) GetUsersForSidebar(c *gin.Context) {
	selfID := midsec.UserID(c)
	users, err := h.Users.ListOthers(c.Request.Context(), selfID)
	if err != nil {
		logger.Errorf("[messages] sidebar list failed user=%s err=%v", selfID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}

	out := make([]sidebarUser, 0, len(users))
	for _, u := range users {
		n, err := h.Messages.CountUnseen(c.Request.Context(), selfID, u.UserID)
		if err != nil {
			logger.Errorf("[messages] unseen count failed viewer=%s peer=%s err=%v", selfID, u.UserID, err)
			n = 0
		}
		out = append(out, sidebarUser{
			ID:          u.UserID,
			Email:       u.Email,
			FullName:    u.FullName,
			ProfilePic:  u.AvatarURL(),
			UnreadCount: n,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Sidebar Users Fetched Successfully.",
		"filteredUsers": out,
	})
}

// GetMessages GET /api/messages/:id
// 拉会话的同时把对端发来的未读全部置已读（打开会话即已读）。
func (h *Handler) GetMessages(c *gin.Context) {
	selfID := midsec.UserID(c)
	peerID := c.Param("id")

	msgs, err := h.Messages.ListConversation(c.Request.Context(), selfID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}

	if err := h.Core.MarkSeen(c.Request.Context(), selfID, peerID); err != nil {
		// 已读失败不挡拉取；计数留到下次对账
		logger.Errorf("[messages] mark seen failed viewer=%s peer=%s err=%v", selfID, peerID, err)
	}

	enriched, err := h.enrichAll(c.Request.Context(), msgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Messages Fetched Successfully.",
		"messages": enriched,
	})
}

// SendMessage POST /api/messages/send/:id
func (h *Handler) SendMessage(c *gin.Context) {
	selfID := midsec.UserID(c)
	receiverID := c.Param("id")

	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.Text == "" && req.Image == "") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Message must have text or an image."})
		return
	}
	if receiverID == selfID {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot message yourself."})
		return
	}

	var imageURL string
	if req.Image != "" {
		var err error
		imageURL, err = h.Upload.Upload(c.Request.Context(), req.Image)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Image upload failed."})
			return
		}
	}

	m, err := h.Messages.Create(c.Request.Context(), msgstore.CreateParams{
		SenderID:   selfID,
		ReceiverID: receiverID,
		Text:       req.Text,
		ImageURL:   imageURL,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}

	// 发起方连接不回显（它拿这里的响应做本地追加），其余会话走 socket。
	originConnID := c.GetHeader("X-Conn-Id")
	if err := h.Core.Dispatch(c.Request.Context(), m, originConnID); err != nil {
		// 消息已落库，扇出失败由下次全量拉取兜底
		logger.Errorf("[messages] dispatch failed msg=%s err=%v", m.MsgID, err)
	}

	sender, err := h.Users.FindByID(c.Request.Context(), selfID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message Created Successfully.", "newMessage": m})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Message Created Successfully.",
		"newMessage": chatsvc.NewEnriched(m, sender),
	})
}

// MarkMessagesAsSeen POST /api/messages/seen/:id
func (h *Handler) MarkMessagesAsSeen(c *gin.Context) {
	selfID := midsec.UserID(c)
	peerID := c.Param("id")

	if err := h.Core.MarkSeen(c.Request.Context(), selfID, peerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Messages marked as seen successfully."})
}

// enrichAll 给整段会话补发送者展示字段，按发送者去重查询。
func (h *Handler) enrichAll(ctx context.Context, msgs []*chatmodel.Message) ([]chatsvc.EnrichedMessage, error) {
	senders := make(map[string]*usermodel.User)
	out := make([]chatsvc.EnrichedMessage, 0, len(msgs))
	for _, m := range msgs {
		u, ok := senders[m.SenderID]
		if !ok {
			var err error
			u, err = h.Users.FindByID(ctx, m.SenderID)
			if err != nil {
				return nil, err
			}
			senders[m.SenderID] = u
		}
		out = append(out, chatsvc.NewEnriched(m, u))
	}
	return out, nil
}
