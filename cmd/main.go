package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/social-app/chat-service/internal/chat"
	cfgpkg "github.com/yourorg/social-app/chat-service/internal/config"
	"github.com/yourorg/social-app/chat-service/internal/events"
	"github.com/yourorg/social-app/chat-service/internal/handlers"
	"github.com/yourorg/social-app/chat-service/internal/logger"
	"github.com/yourorg/social-app/chat-service/internal/presence"
	"github.com/yourorg/social-app/chat-service/internal/repository"
	"github.com/yourorg/social-app/chat-service/internal/routes"
	"github.com/yourorg/social-app/chat-service/internal/ws"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := cfgpkg.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.Server.Development)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo
	mongoCtx, mongoCancel := context.WithTimeout(ctx, 10*time.Second)
	m, err := repository.NewMongo(mongoCtx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.RepoTimeout)
	mongoCancel()
	if err != nil {
		zl.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = m.Disconnect(context.Background()) }()

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Kafka event stream
	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
	defer func() { _ = pub.Close() }()

	// Repositories
	convs := repository.NewConversationRepo(m)
	members := repository.NewMemberRepo(m)
	msgs := repository.NewMessageRepo(m)
	users := repository.NewUserRepo(m)

	// Fan-out hub
	hub := ws.NewHub(zl)

	// Services
	chatSvc := chat.NewService(convs, members, msgs, users, hub, pub, chat.Config{
		TypingWindow:     cfg.TypingWindow,
		MaxContentLength: cfg.Chat.MaxContentLength,
		HistoryPageSize:  int64(cfg.Chat.HistoryPageSize),
	}, zl)

	live := presence.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Redis.DB)
	presSvc := presence.NewService(live, users, hub, pub, cfg.PresenceTTL, zl)
	go func() {
		if err := presSvc.Run(ctx); err != nil {
			zl.Errorw("presence expiry loop stopped", "err", err)
		}
	}()

	// HTTP + websocket
	ch := handlers.NewChatHandler(chatSvc)
	ph := handlers.NewPresenceHandler(presSvc)
	wh := handlers.NewWSHandler(hub, chatSvc, presSvc, cfg.JWT.Secret, handlers.WSConfig{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		MaxMsgSize:    cfg.Chat.MaxMessageSizeBytes,
		SendBuffer:    cfg.Chat.ClientSendBuffer,
		MsgRate:       cfg.Chat.InboundRatePerSec,
		MsgBurst:      cfg.Chat.InboundBurst,
	}, zl)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	routes.Register(app, cfg.JWT.Secret, ch, ph, wh)

	go func() {
		zl.Infow("chat service starting", "port", cfg.Server.Port)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			zl.Fatalw("server listen", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	zl.Infow("chat service stopped")
}
