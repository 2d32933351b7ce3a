package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yourorg/pairchat/internal/api"
	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/chat"
	"github.com/yourorg/pairchat/internal/config"
	"github.com/yourorg/pairchat/internal/hub"
	"github.com/yourorg/pairchat/internal/kafka"
	"github.com/yourorg/pairchat/internal/logger"
	"github.com/yourorg/pairchat/internal/media"
	"github.com/yourorg/pairchat/internal/presence"
	"github.com/yourorg/pairchat/internal/rediscache"
	"github.com/yourorg/pairchat/internal/repository"
	"github.com/yourorg/pairchat/internal/storage"
	"github.com/yourorg/pairchat/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	var verifier *auth.Verifier
	if cfg.JWT.Algorithm == "RS256" {
		verifier, err = auth.NewVerifierRS256(cfg.JWT.PublicKeyPath)
	} else {
		verifier, err = auth.NewVerifierHS256(cfg.JWT.HSSecret)
	}
	if err != nil {
		zl.Fatalw("jwt verifier init failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo connect failed", "err", err)
	}
	defer mongoClient.Disconnect(context.Background())
	repos := repository.New(mongoClient, cfg.Mongo.Database, zl)

	blobs, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket)
	if err != nil {
		zl.Fatalw("s3 init failed", "err", err)
	}

	var mirror presence.Mirror
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		mirror = rediscache.NewPresenceMirror(rdb, cfg.Redis.Prefix)
	}

	var publisher chat.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer kp.Close()
		publisher = kp
	}

	roomHub := hub.New(repos.Conversations, zl)
	broadcaster := presence.NewBroadcaster(repos.Conversations, roomHub, mirror, zl)
	registry := presence.NewRegistry()
	sweeper := presence.NewSweeper(registry, repos.Users, broadcaster, cfg.SweepInterval, cfg.StaleThreshold, zl)
	coordinator := chat.NewCoordinator(repos.Messages, repos.Conversations, repos.Media, roomHub, publisher, zl)
	gate := media.NewGate(repos.Media, repos.Conversations, blobs, cfg.UploadTTL, zl)

	wsHandler := ws.NewHandler(verifier, repos.Users, registry, roomHub, broadcaster, coordinator, ws.Config{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
	}, zl)

	app := api.New(cfg, verifier, repos, gate, blobs, roomHub, sweeper, wsHandler, zl)

	go sweeper.Run(ctx)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zl.Infow("starting server", "addr", addr)
		errs <- app.Listen(addr)
	}()

	select {
	case err := <-errs:
		zl.Fatalw("server error", "err", err)
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	}
	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown failed", "err", err)
	}
	zl.Info("shutting down")
}
