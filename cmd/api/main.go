package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/event-service/internal/api/http"
	"github.com/spec-kit/event-service/internal/api/http/handlers"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/persistence"
	"github.com/spec-kit/event-service/internal/realtime"
	"github.com/spec-kit/event-service/internal/repository"
	"github.com/spec-kit/event-service/internal/service"
	"github.com/spec-kit/event-service/internal/worker"
)

type stores struct {
	events       repository.EventRepository
	users        repository.UserRepository
	dependencies map[string]handlers.Pinger
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	var redisConn *persistence.Redis
	if cfg.Redis.Enabled {
		redisConn = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redisConn.Close()
		st.dependencies["redis"] = redisConn
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, st.users, logger))

	hub := realtime.NewHub(logger, metrics)
	var broadcaster service.Broadcaster = hub
	var relay *realtime.RedisBroadcaster
	if redisConn != nil {
		relay = realtime.NewRedisBroadcaster(redisConn.Client, cfg.Redis, hub, logger, domain.TopicAttendeeUpdate)
		broadcaster = relay
	}

	authService := service.NewAuthService(cfg.Auth, st.users)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), st.users)
	eventService := service.NewEventService(st.events, st.users, dispatcher, logger)
	membershipService := service.NewMembershipService(cfg.Membership, service.MembershipDependencies{
		Events:      st.events,
		Broadcaster: broadcaster,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})

	var limiterClient *redis.Client
	if redisConn != nil {
		limiterClient = redisConn.Client
	}
	rateLimiter, err := httptransport.NewRateLimiter(cfg.RateLimit, limiterClient, cfg.Redis.ChannelPrefix)
	if err != nil {
		logger.Fatal("failed to init rate limiter", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:  logger,
		Metrics: metrics,
		Timeout: cfg.App.RequestTimeout(),
		CORS:    cfg.CORS,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:              handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, st.dependencies),
		Users:               handlers.NewUsersHandler(authService),
		Events:              handlers.NewEventsHandler(eventService, membershipService),
		Realtime:            handlers.NewRealtimeHandler(hub, membershipService, logger, cfg.App.RequestTimeout()),
		AuthMiddleware:      authMiddleware,
		RateLimiter:         rateLimiter,
		RealtimeRequireAuth: cfg.Realtime.RequireAuth,
	})

	archive := worker.NewArchiveWorker(st.events, st.users, cfg.Worker.ArchiveInterval(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return archive.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hub.CloseAll()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &stores{
			events:       repository.NewEventRepository(pg.PoolHandle()),
			users:        repository.NewUserRepository(pg.PoolHandle()),
			dependencies: map[string]handlers.Pinger{"postgres": pg},
			close:        pg.Close,
		}, nil
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &stores{
			events:       repository.NewMemoryEventRepository(),
			users:        repository.NewMemoryUserRepository(),
			dependencies: map[string]handlers.Pinger{},
			close:        func() {},
		}, nil
	default:
		mongo, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		return &stores{
			events:       repository.NewMongoEventRepository(mongo.Database),
			users:        repository.NewMongoUserRepository(mongo.Database),
			dependencies: map[string]handlers.Pinger{"mongo": mongo},
			close: func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				mongo.Close(shutdownCtx)
			},
		}, nil
	}
}
