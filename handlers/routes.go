package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/services"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Catalog         *services.CatalogService
	Library         *services.LibraryService
	Challenges      *services.ChallengeService
	Leaderboards    *services.LeaderboardService
	Feed            *services.FeedService
	Profiles        *services.ProfileService
	Recommendations *services.RecommendationService
	Subscriptions   *services.SubscriptionService

	// Optional. Without it the feed stream route is not mounted.
	TokenValidator middleware.TokenValidator
}

type AppOptions struct {
	GatewayToken   string
	AllowedOrigins string
}

// NewApp builds the fiber app with every route mounted under /api/v1.
func NewApp(svc Services, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: ErrorHandler,
	})

	// Unauthenticated probes.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if opts.AllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Service-Token, X-Device-ID",
			ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}

	api := app.Group("/api/v1")

	// The stream authenticates with its own token, EventSource cannot send
	// the gateway header.
	if svc.TokenValidator != nil {
		api.Get("/feed/stream", middleware.SSEAuthMiddleware(svc.TokenValidator), svc.Feed.StreamFeedSSE)
	}

	// 🔐❗ Everything else must come through the Gateway
	api.Use(middleware.GatewayAuthMiddleware(opts.GatewayToken))
	api.Use(middleware.UserContextMiddleware())

	SetupCatalogRoutes(api, svc.Catalog)
	SetupLibraryRoutes(api, svc.Library)
	SetupChallengeRoutes(api, svc.Challenges)
	SetupLeaderboardRoutes(api, svc.Leaderboards)
	SetupFeedRoutes(api, svc.Feed)
	SetupProfileRoutes(api, svc.Profiles)
	SetupRecommendationRoutes(api, svc.Recommendations)
	SetupSubscriptionRoutes(api, svc.Subscriptions)

	return app
}
