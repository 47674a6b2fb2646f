package http

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/observability"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// MiddlewareConfig bundles dependencies for the global middleware chain.
type MiddlewareConfig struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Timeout time.Duration
	CORS    config.CORSConfig
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(errorHandlingMiddleware(cfg.Logger, cfg.Metrics))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + observability.RequestIDHeader,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				if metrics != nil {
					metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
				}
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed",
						zap.String("request_id", observability.RequestID(c)),
						zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// NewRateLimiter builds a per-minute limiter, shared through Redis when a
// client is given and process-local otherwise.
func NewRateLimiter(cfg config.RateLimitConfig, client *redis.Client, prefix string) (*limiter.Limiter, error) {
	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  cfg.PerMinute,
	}

	var store limiter.Store
	if client != nil {
		var err error
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   prefix + ":limiter",
			MaxRetry: 3,
		})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStore()
	}
	return limiter.New(store, rate), nil
}

// RateLimitMiddleware rejects clients that exceed the limiter's rate, keyed by IP.
func RateLimitMiddleware(instance *limiter.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if instance == nil || instance.Rate.Limit <= 0 {
			return c.Next()
		}
		lctx, err := instance.Get(c.UserContext(), c.IP())
		if err != nil {
			return apperrors.NewInternalError(err)
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
