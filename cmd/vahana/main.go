package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/Vahana/app/controllers"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/accounts"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/butler"
	"github.com/ManuelReschke/Vahana/internal/pkg/cache"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/ManuelReschke/Vahana/internal/pkg/database"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/identity"
	"github.com/ManuelReschke/Vahana/internal/pkg/jobqueue"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
	"github.com/ManuelReschke/Vahana/internal/pkg/oauth"
	"github.com/ManuelReschke/Vahana/internal/pkg/objectstore"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
	"github.com/ManuelReschke/Vahana/internal/pkg/referral"
	"github.com/ManuelReschke/Vahana/internal/pkg/review"
	"github.com/ManuelReschke/Vahana/internal/pkg/router"
	"github.com/ManuelReschke/Vahana/internal/pkg/scheduler"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, svc := NewApplication(ctx)

	go func() {
		<-ctx.Done()
		log.Println("[Vahana] Shutting down...")
		svc.Scheduler.Stop()
		jobqueue.GetManager().Stop()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("[Vahana] Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication(ctx context.Context) (*fiber.App, *controllers.Services) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	svc, err := NewServices(ctx)
	if err != nil {
		log.Fatalf("[Vahana] Could not wire services: %v", err)
	}

	// init oauth providers
	oauth.Setup()

	// init fiber app
	cfg := fiber.Config{
		AppName:      "Vahana",
		ErrorHandler: controllers.ErrorHandler,
		BodyLimit:    20 * 1024 * 1024, // review images
		ReadTimeout:  30 * time.Second,
	}
	controllers.ConfigureProxy(&cfg, env.GetEnv("PROXY_HEADER", ""), env.GetEnv("TRUSTED_PROXIES", ""))
	app := fiber.New(cfg)

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app, svc)

	if err := svc.Scheduler.Start(ctx); err != nil {
		log.Fatalf("[Vahana] Could not start billing scheduler: %v", err)
	}

	return app, svc
}

// NewServices builds the domain services on the global database, cache and
// job queue.
func NewServices(ctx context.Context) (*controllers.Services, error) {
	repository.InitializeFactory(database.GetDB())
	factory := repository.GetGlobalFactory()
	repos := factory.GetRepositories()
	uow := factory.GetUnitOfWork()

	m := metrics.Default()

	manager := jobqueue.GetManager()
	manager.Start()
	notifier := jobqueue.NewNotifier(manager.GetQueue())
	m.WatchQueue(manager.GetQueue())

	billingSvc := billing.NewServiceFromEnv(repos)
	billingSvc.SetMetrics(m)

	couponSvc := coupon.NewService(uow, repos)
	couponSvc.SetMetrics(m)

	pointsSvc := points.NewService(uow, repos)
	pointsSvc.SetMetrics(m)

	referralSvc := referral.NewService(uow, repos)

	accountSvc := accounts.NewService(repos, identity.NewPortOneVerifierFromEnv(), referralSvc)
	accountSvc.SetNotifier(notifier)
	accountSvc.SetCodeStore(accounts.RedisCodeStore{})

	subscriptionSvc := subscription.NewService(uow, repos, billingSvc)
	subscriptionSvc.SetNotifier(notifier)
	subscriptionSvc.SetMetrics(m)
	subscriptionSvc.SetLocker(cache.AcquireLock)

	butlerSvc := butler.NewService(uow, repos, billingSvc)
	butlerSvc.SetNotifier(notifier)
	butlerSvc.SetMetrics(m)

	store, err := objectstore.NewFromEnv(ctx, env.GetEnv("UPLOADS_DIR", "./uploads"), "/uploads")
	if err != nil {
		return nil, err
	}

	return &controllers.Services{
		Repos:        repos,
		Accounts:     accountSvc,
		Referral:     referralSvc,
		Coupon:       couponSvc,
		Points:       pointsSvc,
		Subscription: subscriptionSvc,
		Butler:       butlerSvc,
		Billing:      billingSvc,
		Review:       review.NewService(repos, store),
		Scheduler:    scheduler.New(subscriptionSvc),
	}, nil
}
