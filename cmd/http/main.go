package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/hilthontt/repochat/internal/application/chat"
	"github.com/hilthontt/repochat/internal/application/social"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/configs"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/metrics"
	"github.com/hilthontt/repochat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/repochat/internal/infrastructure/retry"
	"github.com/hilthontt/repochat/internal/infrastructure/tracing"
	"github.com/hilthontt/repochat/internal/infrastructure/workspace"
	"github.com/hilthontt/repochat/internal/infrastructure/ws"
	"github.com/hilthontt/repochat/internal/presentation/api"
	friendsHandler "github.com/hilthontt/repochat/internal/presentation/handler/friends"
	healthHandler "github.com/hilthontt/repochat/internal/presentation/handler/health"
	joinRequestsHandler "github.com/hilthontt/repochat/internal/presentation/handler/joinrequests"
	messagesHandler "github.com/hilthontt/repochat/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/repochat/internal/presentation/handler/rooms"
	workspaceHandler "github.com/hilthontt/repochat/internal/presentation/handler/workspace"
)

func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
	})
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: "visper-api",
		Environment: cfg.Tracing.Environment,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize tracing", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = shutdownTracer(shutdownCtx)
	}()

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	store, err := newBlobStore(cfg.BlobStore)
	if err != nil {
		logger.Fatal(logging.BlobStore, logging.Startup, "failed to configure blob store", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	client := blobstore.NewInstrumented(store, m)

	policy := retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, logger, m)
	docs := document.NewRepository(client, policy, logger)
	provisioner := workspace.NewProvisioner(client, docs, policy, logger)

	backing, closeCache, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Fatal(logging.Cache, logging.Startup, "failed to connect cache", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer closeCache()
	c := cache.NewInstrumented(backing, m)

	core := ws.NewCore(cfg.HTTP.AllowedOrigins, logger)
	go core.Run(ctx)

	chatService := chat.NewService(docs, provisioner, c, core, chat.Config{
		MessageLogCapacity: cfg.Chat.MessageLogCapacity,
		RoomsMaxAge:        cfg.Cache.RoomsMaxAge,
		RequestsMaxAge:     cfg.Cache.RequestsMaxAge,
	}, logger)
	socialService := social.NewService(docs, provisioner, c, chatService, social.Config{
		SystemNotices:  cfg.Social.SystemNotices,
		RequestsMaxAge: cfg.Cache.RequestsMaxAge,
	}, logger)

	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	defer rateLimiter.Close()

	app := api.NewApplication(*cfg, api.Handlers{
		Health:       healthHandler.NewHandler(),
		Workspace:    workspaceHandler.NewHandler(provisioner, logger),
		Rooms:        roomsHandler.NewHandler(chatService, core, logger),
		Messages:     messagesHandler.NewHandler(chatService, cfg.Cache.MessagesMaxAge, logger),
		JoinRequests: joinRequestsHandler.NewHandler(chatService, logger),
		Friends:      friendsHandler.NewHandler(socialService, cfg.Cache.ContactsMaxAge, logger),
		Metrics:      metrics.Handler(registry),
	}, logger, rateLimiter)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Error(logging.General, logging.Lifecycle, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func newBlobStore(cfg configs.BlobStoreConfig) (blobstore.Client, error) {
	switch cfg.Driver {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "http":
		store, err := blobstore.NewHTTPStore(blobstore.HTTPConfig{
			BaseURL:   cfg.BaseURL,
			Container: cfg.Container,
			Token:     cfg.Token,
			Timeout:   cfg.Timeout,
			Committer: cfg.Committer,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blobstore driver %q", cfg.Driver)
	}
}

func newCache(ctx context.Context, cfg configs.CacheConfig, logger logging.Logger) (cache.Cache, func(), error) {
	switch cfg.Driver {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			KeyPrefix:     cfg.KeyPrefix,
			SchemaVersion: cfg.SchemaVersion,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return cache.NewMemory(cfg.SchemaVersion), func() {}, nil
	}
}
