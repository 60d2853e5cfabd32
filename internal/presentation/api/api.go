package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/repochat/internal/infrastructure/configs"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/ratelimiter"
	friendsHandler "github.com/hilthontt/repochat/internal/presentation/handler/friends"
	healthHandler "github.com/hilthontt/repochat/internal/presentation/handler/health"
	joinRequestsHandler "github.com/hilthontt/repochat/internal/presentation/handler/joinrequests"
	messagesHandler "github.com/hilthontt/repochat/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/repochat/internal/presentation/handler/rooms"
	workspaceHandler "github.com/hilthontt/repochat/internal/presentation/handler/workspace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Health       *healthHandler.Handler
	Workspace    *workspaceHandler.Handler
	Rooms        *roomsHandler.Handler
	Messages     *messagesHandler.Handler
	JoinRequests *joinRequestsHandler.Handler
	Friends      *friendsHandler.Handler
	Metrics      http.Handler
}

type Application struct {
	config      configs.Config
	handlers    Handlers
	logger      logging.Logger
	ratelimiter ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	handlers Handlers,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:      config,
		handlers:    handlers,
		logger:      logger,
		ratelimiter: ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(app.enableCors)

	if app.handlers.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.handlers.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.handlers.Health.GetHealth)
		r.Get("/healthz", app.handlers.Health.GetHealth)
		r.Get("/ready", app.handlers.Health.GetHealth)
		r.Get("/live", app.handlers.Health.GetHealth)

		r.Group(func(r chi.Router) {
			r.Use(app.identityMiddleware)
			r.Use(app.rateLimiterMiddleware)

			r.Post("/workspace", app.handlers.Workspace.EnsureHandler)
			r.Get("/notices", app.handlers.Messages.ListNoticesHandler)

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", app.handlers.Rooms.CreateRoomHandler)
				r.Get("/", app.handlers.Rooms.ListRoomsHandler)

				r.Route("/{roomId}", func(r chi.Router) {
					r.Get("/", app.handlers.Rooms.GetRoomHandler)
					r.Patch("/", app.handlers.Rooms.UpdateRoomHandler)
					r.Delete("/", app.handlers.Rooms.DeleteRoomHandler)
					r.Post("/join", app.handlers.Rooms.JoinRoomHandler)
					r.Delete("/members/{login}", app.handlers.Rooms.RemoveMemberHandler)
					r.Get("/ws", app.handlers.Rooms.SubscribeHandler)

					r.Get("/messages", app.handlers.Messages.ListMessagesHandler)
					r.Post("/messages", app.handlers.Messages.CreateMessageHandler)
				})
			})

			r.Route("/join-requests", func(r chi.Router) {
				r.Get("/", app.handlers.JoinRequests.ListHandler)
				r.Post("/{requestId}/resolve", app.handlers.JoinRequests.ResolveHandler)
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", app.handlers.Friends.ListContactsHandler)
				r.Delete("/{login}", app.handlers.Friends.RemoveContactHandler)
				r.Get("/requests", app.handlers.Friends.ListRequestsHandler)
				r.Post("/requests", app.handlers.Friends.SendRequestHandler)
				r.Post("/requests/{requestId}/resolve", app.handlers.Friends.ResolveRequestHandler)
			})
		})
	})

	return r
}

// Run serves mux until SIGINT or SIGTERM, then drains in-flight requests.
func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      otelhttp.NewHandler(mux, "visper-api"),
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Lifecycle, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Lifecycle, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
