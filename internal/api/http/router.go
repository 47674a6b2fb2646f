package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ulule/limiter/v3"

	"github.com/spec-kit/event-service/internal/api/http/handlers"
	"github.com/spec-kit/event-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health              *handlers.HealthHandler
	Users               *handlers.UsersHandler
	Events              *handlers.EventsHandler
	Realtime            *handlers.RealtimeHandler
	AuthMiddleware      *auth.AuthMiddleware
	RateLimiter         *limiter.Limiter
	RealtimeRequireAuth bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/api", RateLimitMiddleware(cfg.RateLimiter))
	authGroup.Post("/sign-up", cfg.Users.SignUp)
	authGroup.Post("/sign-in", cfg.Users.SignIn)

	events := app.Group("/events")
	events.Get("/upcoming", cfg.Events.Upcoming)
	events.Get("/past", cfg.Events.Past)
	events.Post("/filter", cfg.Events.Filter)

	// Auth is attached per route so GET /events/:id stays public.
	protected := func(h fiber.Handler) []fiber.Handler {
		return []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireUser(), h}
	}
	events.Post("/", protected(cfg.Events.Create)...)
	events.Get("/mine", protected(cfg.Events.Mine)...)
	events.Put("/:id", protected(cfg.Events.Update)...)
	events.Delete("/:id", protected(cfg.Events.Delete)...)
	events.Post("/:id/join", protected(cfg.Events.Join)...)
	events.Post("/:id/leave", protected(cfg.Events.Leave)...)

	events.Get("/:id", cfg.Events.Get)

	if cfg.Realtime != nil {
		app.Get("/ws",
			cfg.AuthMiddleware.Optional(cfg.RealtimeRequireAuth),
			cfg.Realtime.Upgrade,
			cfg.Realtime.Serve())
	}
}
