package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/butykaidavid/read-rival-quest/clients/googlebooks"
	"github.com/butykaidavid/read-rival-quest/clients/openai"
	"github.com/butykaidavid/read-rival-quest/clients/stripe"
	"github.com/butykaidavid/read-rival-quest/handlers"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/services"
	"github.com/butykaidavid/read-rival-quest/utils"
	"github.com/butykaidavid/read-rival-quest/workers"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, background workers and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := models.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		books := googlebooks.NewClient(googlebooks.Options{
			BaseURL:           cfg.GoogleBooks.BaseURL,
			APIKey:            cfg.GoogleBooks.APIKey,
			Timeout:           cfg.GoogleBooks.Timeout,
			RequestsPerSecond: cfg.GoogleBooks.RequestsPerSecond,
		})

		var completer services.Completer
		if cfg.OpenAI.APIKey != "" {
			completer = openai.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
		} else {
			log.Println("⚠️  OPENAI_API_KEY not set, recommendations are disabled")
		}
		var checkout services.CheckoutProvider
		if cfg.Stripe.SecretKey != "" {
			checkout = stripe.NewCheckout(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
		} else {
			log.Println("⚠️  STRIPE_SECRET_KEY not set, checkout is disabled")
		}

		svc := handlers.Services{
			Catalog:         services.NewCatalogService(db, books, cfg.GoogleBooks.MaxResults),
			Library:         services.NewLibraryService(db),
			Challenges:      services.NewChallengeService(db),
			Leaderboards:    services.NewLeaderboardService(db),
			Feed:            services.NewFeedService(db),
			Profiles:        services.NewProfileService(db),
			Recommendations: services.NewRecommendationService(db, completer),
			Subscriptions:   services.NewSubscriptionService(db, checkout),
		}
		if cfg.AuthServiceURL != "" {
			svc.TokenValidator = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.GatewayToken)
		} else {
			log.Println("⚠️  AUTH_SERVICE_URL not set, feed stream is disabled")
		}

		app := handlers.NewApp(svc, handlers.AppOptions{
			GatewayToken:   cfg.GatewayToken,
			AllowedOrigins: cfg.CORSOrigins(),
		})

		sched, err := services.StartScheduler(svc.Leaderboards, svc.Profiles, cfg.LeaderboardRecomputeInterval)
		if err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Printf("[SCHEDULER] shutdown: %v", err)
			}
		}()

		g, gctx := errgroup.WithContext(ctx)

		if cfg.ProfileSync.URL != "" {
			syncWorker := workers.NewProfileSyncWorker(db, cfg.ProfileSync)
			g.Go(func() error {
				syncWorker.Start(gctx)
				return nil
			})
			log.Println("✅ Profile sync worker running")
		}

		if cfg.R2.Enabled() {
			storage, err := utils.NewR2Storage(ctx, cfg.R2)
			if err != nil {
				return fmt.Errorf("failed to initialize R2 client: %w", err)
			}
			mirror := workers.NewCoverMirrorWorker(db, storage, cfg.CoverMirrorInterval)
			g.Go(func() error {
				mirror.Run(gctx)
				return nil
			})
			log.Println("✅ Cover mirror worker running")
		}

		addr := fmt.Sprintf(":%d", cfg.Port)
		g.Go(func() error {
			log.Printf("✅ Server running on http://localhost%s", addr)
			return app.Listen(addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Println("Shutting down server...")
			return app.ShutdownWithTimeout(shutdownTimeout)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
