package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Chatty/config"
	"Chatty/logger"
	mid "Chatty/middleware"
	midsec "Chatty/middleware/security"
	chathttp "Chatty/module/chat"
	msgstore "Chatty/module/chat/message"
	userhttp "Chatty/module/user"
	userservice "Chatty/module/user/service"
	chatsvc "Chatty/service/chat"
	"Chatty/service/mgo"
	"Chatty/service/natsx"
	"Chatty/service/storage"
	redisx "Chatty/service/storage/redis"
	"Chatty/tools/ids"
	"Chatty/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ===== 存储 =====
	if err := mgo.Init(ctx, cfg.Mongo); err != nil {
		logger.Errorf("[boot] mongo init failed: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mgo.Close(context.Background()) }()
	db := mgo.GetDB()

	// redis 不可用时未读计数退化为进程内存储（单节点语义不变）
	var unreadStore storage.UnreadStore = storage.NewMemUnread()
	if cfg.Redis.Enable {
		if err := redisx.Init(cfg.Redis); err != nil {
			logger.Warnf("[boot] redis unavailable, unread counters fall back to memory: %v", err)
		} else {
			unreadStore = storage.NewRedisUnread()
			defer func() { _ = redisx.Close() }()
		}
	}

	users := userservice.NewStore(db)
	messages := msgstore.NewStore(db)

	jwtOpts := security.DefaultOptions([]byte(cfg.JWT.Secret))
	if cfg.JWT.TTL > 0 {
		jwtOpts.TTL = cfg.JWT.TTL
	}

	gwID := cfg.Server.GatewayID
	if gwID == "" {
		gwID = "gw-" + ids.GenerateString()
	}

	// ===== 跨节点转发（可选）=====
	var relay chatsvc.Relay
	var natsRelay *natsx.Relay
	if cfg.Nats.Enable {
		r, err := natsx.New(cfg.Nats, gwID)
		if err != nil {
			logger.Errorf("[boot] nats connect failed: %v", err)
			os.Exit(1)
		}
		relay = r
		natsRelay = r
		defer natsRelay.Close()
	}

	core := chatsvc.NewServer(chatsvc.Options{
		GatewayID: gwID,
		Users:     users,
		Seen:      messages,
		Unread:    unreadStore,
		Relay:     relay,
		JWTVerify: func(token string) (string, error) {
			return security.Verify(jwtOpts, token)
		},
	})
	defer core.Stop()

	if natsRelay != nil {
		if err := natsRelay.Subscribe(core.Dispatcher().DeliverRemote); err != nil {
			logger.Errorf("[boot] nats subscribe failed: %v", err)
			os.Exit(1)
		}
	}

	// ===== HTTP + WS =====
	auth := midsec.DefaultOptions(jwtOpts)
	uh := userhttp.NewHandler(users, jwtOpts)
	ch := chathttp.NewHandler(messages, users, core, chathttp.PassthroughUploader{})

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", core.HandleWS)

	api := r.Group("/api")
	mid.POST(api, "/auth/signup", uh.Signup, auth, mid.RouteOpt{IsAuth: false})
	mid.POST(api, "/auth/login", uh.Login, auth, mid.RouteOpt{IsAuth: false})
	mid.POST(api, "/auth/logout", uh.Logout, auth, mid.RouteOpt{IsAuth: false})
	mid.GET(api, "/auth/check", uh.Check, auth, mid.RouteOpt{IsAuth: true})
	mid.PUT(api, "/auth/update-profile", uh.UpdateProfile, auth, mid.RouteOpt{IsAuth: true})

	mid.GET(api, "/messages/users", ch.GetUsersForSidebar, auth, mid.RouteOpt{IsAuth: true})
	mid.GET(api, "/messages/:id", ch.GetMessages, auth, mid.RouteOpt{IsAuth: true})
	mid.POST(api, "/messages/send/:id", ch.SendMessage, auth, mid.RouteOpt{IsAuth: true})
	mid.POST(api, "/messages/seen/:id", ch.MarkMessagesAsSeen, auth, mid.RouteOpt{IsAuth: true})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}

	go func() {
		logger.Infof("[boot] gateway %s listening on %s", gwID, cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[boot] http server failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Infof("[boot] shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warnf("[boot] http shutdown: %v", err)
	}
}
