package main

import (
	"context"
	"errors"
	"log"
	"time"

	"circle-chat/config"
	"circle-chat/internal/auth"
	"circle-chat/internal/chat"
	"circle-chat/internal/giphy"
	"circle-chat/internal/handler"
	"circle-chat/internal/middleware"
	"circle-chat/internal/redis"
	"circle-chat/internal/resilience"
	"circle-chat/internal/server"
	"circle-chat/internal/services"
	"circle-chat/internal/storage"
	"circle-chat/internal/store"
	"circle-chat/internal/store/firestore"
	"circle-chat/internal/store/memstore"
	"circle-chat/internal/websocket"
	"circle-chat/pkg/diagnostics"
	"circle-chat/pkg/events"
	"circle-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	_, restore := diagnostics.Install(l, cfg.DiagnosticsSuppress...)
	defer restore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base, closeStore := openStore(ctx, cfg, l)
	defer closeStore()

	rec := resilience.Initialize(base, cfg.RecoveryCooldown, l)
	docs := resilience.Guard(base, rec)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	var (
		cache     chat.ProfileCache
		publisher events.Publisher = hub
		limiter   middleware.Limiter
	)
	if rdb := connectRedis(ctx, cfg, l); rdb != nil {
		defer rdb.Close()
		cache = redis.NewProfileCache(rdb, redis.CacheConfig{ProfileTTL: cfg.ProfileCacheTTL})
		publisher = redis.NewPublisher(rdb)
		limiter = redis.NewRateLimiter(rdb, redis.DefaultRateLimitConfig())

		bridge := websocket.NewRedisBridge(redis.NewSubscriber(rdb), hub)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				l.Errorf("redis bridge stopped: %v", err)
			}
		}()
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	sessions := services.NewSessionService(services.SessionDeps{
		Verifier: verifier,
		Store:    docs,
		Blobs:    openBlobs(ctx, cfg, l),
		Cache:    cache,
		Gifs:     giphy.NewClient(cfg.GiphyAPIKey, cfg.GiphyLimit, l),
		Events:   publisher,
		Config: services.SessionConfig{
			InviteBaseURL: cfg.InviteBaseURL,
			NoticeTTL:     cfg.NoticeTTL,
		},
		Log: l,
	})
	defer sessions.CloseAll()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Session:      handler.NewSessionHandler(sessions),
		Conversation: handler.NewConversationHandler(),
		Room:         handler.NewRoomHandler(),
		Group:        handler.NewGroupHandler(),
		User:         handler.NewUserHandler(),
		Socket:       websocket.NewHandler(sessions, hub, l),
		Health: func(context.Context) error {
			if rec.Recovering() {
				return errors.New("store connection is recovering")
			}
			return nil
		},
	}, server.Guards{
		Verifier: verifier,
		Sessions: sessions,
		Limiter:  limiter,
	})

	if err := srv.Start(); err != nil {
		l.Errorf("shutdown: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, l *logger.Logger) (store.DocumentStore, func()) {
	if cfg.StoreBackend == config.StoreMemory {
		l.Warnf("Using the in-memory store; data is lost on restart")
		return memstore.New(), func() {}
	}
	fs, err := firestore.New(ctx, cfg.FirestoreProjectID, l)
	if err != nil {
		log.Fatalf("Failed to open firestore: %v", err)
	}
	return fs, func() {
		if err := fs.Close(); err != nil {
			l.Warnf("closing firestore: %v", err)
		}
	}
}

// connectRedis returns nil when redis is not configured or unreachable.
func connectRedis(ctx context.Context, cfg *config.Config, l *logger.Logger) *goredis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	rdb := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redis.Ping(pingCtx, rdb); err != nil {
		l.Warnf("Redis unreachable, running without cache and fan-out: %v", err)
		_ = rdb.Close()
		return nil
	}
	l.Infof("Connected to redis at %s:%s", cfg.RedisHost, cfg.RedisPort)
	return rdb
}

func openBlobs(ctx context.Context, cfg *config.Config, l *logger.Logger) storage.BlobStore {
	if cfg.S3Bucket == "" {
		l.Warnf("No S3 bucket configured; image uploads are disabled")
		return storage.Disabled{}
	}
	client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
		PresignTTL: cfg.S3PresignTTL,
	})
	if err != nil {
		l.Warnf("S3 unavailable, image uploads are disabled: %v", err)
		return storage.Disabled{}
	}
	return client
}
