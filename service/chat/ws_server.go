package chat

import (
	"context"
	"net"
	"net/http"
	"time"

	"Chatty/logger"
	"Chatty/service/storage"
	"Chatty/tools/decode"
	"Chatty/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const presenceTTL = 2 * time.Minute

// HandleWS ===== WebSocket 接入 =====
//
// 握手必须带身份：?token= 或 jwt cookie。校验失败直接拒绝升级。
// 升级成功后：注册会话 -> 写协程 -> 读循环（只读）；退出时同步注销，
// 保证之后的 presence 快照不会再包含这条连接。
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if v, err := c.Cookie("jwt"); err == nil {
			token = v
		}
	}
	userID, err := s.jwtVerify(token)
	if err != nil || userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	// connID 只在本节点内有意义，UUID 即可；雪花 ID 留给落库实体
	client := NewClient(uuid.NewString(), userID, ws, s.sendQueue)
	s.reg.Register(client)
	client.Enqueue(BuildConnected(client.ConnID, userID))

	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := storage.PresenceOnline(ctx, userID, s.gwID, presenceTTL); err != nil {
			logger.Warnf("[HandleWS] presence mirror online failed user=%s err=%v", userID, err)
		}
		cancel()
	}

	safe.Go(client.WritePump)

	ws.SetPongHandler(func(string) error {
		// pong 顺带给 presence 镜像续期，避免 TTL 把活连接判死
		safe.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = storage.PresenceOnline(ctx, userID, s.gwID, presenceTTL)
		})
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))

	// ---- 读循环：只读，不写；出错即退出（写协程收尾） ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed user=%s conn=%s", userID, client.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout user=%s conn=%s", userID, client.ConnID)
			} else {
				logger.Infof("[WS] read err user=%s conn=%s err=%v", userID, client.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseFrame err conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		switch frame.Event {
		case EventFocus:
			p, derr := decode.DecodeJSON[FocusPayload](frame.Data)
			if derr != nil {
				logger.Infof("[WS] bad focus payload conn=%s err=%v", client.ConnID, derr)
				continue
			}
			client.SetFocus(p.PeerID)
		default:
			logger.Infof("[WS] no handler for event=%s conn=%s", frame.Event, client.ConnID)
		}
	}

	// ---- 退出阶段：同步注销，再清 presence 镜像 ----
	s.reg.Unregister(client)
	client.Close()

	if !s.reg.IsOnline(userID) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := storage.PresenceOffline(ctx, userID); err != nil {
			logger.Warnf("[HandleWS] presence mirror offline failed user=%s err=%v", userID, err)
		}
		cancel()
	}
}
