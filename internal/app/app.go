package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chopshop/server/internal/infra/httpclient"
	"github.com/chopshop/server/internal/module/billing"
	"github.com/chopshop/server/internal/module/catalog"
	"github.com/chopshop/server/internal/module/credits"
	"github.com/chopshop/server/internal/module/job"
	"github.com/chopshop/server/internal/module/order"
	"github.com/chopshop/server/internal/module/payment"
	"github.com/chopshop/server/internal/module/pricing"
	"github.com/chopshop/server/internal/module/provider"
	sharedcache "github.com/chopshop/server/internal/shared/cache"
	"github.com/chopshop/server/internal/shared/config"
	"github.com/chopshop/server/internal/shared/database"
	"github.com/chopshop/server/internal/shared/logger"
	"github.com/chopshop/server/internal/shared/metrics"
	"github.com/chopshop/server/internal/shared/middleware"
)

// App wires the storefront together: catalog, ledger, pricing, orders,
// fulfillment, and payment webhooks behind one gin router.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   redis.UniversalClient
	router  *gin.Engine
	log     *zap.Logger
	metrics *metrics.Metrics

	orchestrator *job.Orchestrator
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config:  cfg,
		log:     log,
		metrics: metrics.New(""),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := app.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional; the catalog cache degrades to direct reads.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn("redis connection failed, catalog cache disabled", zap.Error(err))
		} else {
			app.redis = redisClient
		}
	}

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	return app, nil
}

// Router returns the configured HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop shuts down background work and closes connections.
func (a *App) Stop() {
	if a.orchestrator != nil {
		a.orchestrator.Stop()
	}
	if a.redis != nil {
		if err := sharedcache.Close(a.redis); err != nil {
			a.log.Warn("redis close failed", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("database close failed", zap.Error(err))
	}
	_ = a.log.Sync()
}

func (a *App) migrate() error {
	return a.db.AutoMigrate(
		&catalog.Item{},
		&catalog.Modifier{},
		&catalog.Plan{},
		&credits.Account{},
		&credits.Transaction{},
		&billing.Subscription{},
		&billing.UsagePeriod{},
		&order.Order{},
		&job.Job{},
		&job.Step{},
		&job.WorkflowTemplate{},
		&payment.WebhookEvent{},
	)
}

func (a *App) initModules() error {
	ctx := context.Background()

	// Catalog, with optional redis read-through cache.
	catalogRepo := catalog.NewRepository(a.db)
	cachedCatalogRepo := catalog.NewCachedRepository(catalogRepo, a.redis, a.config.Catalog.CacheTTL, a.log)
	catalogService := catalog.NewService(cachedCatalogRepo, a.log)
	if err := catalog.Seed(ctx, catalogRepo, a.log); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	// Credit ledger.
	creditsRepo := credits.NewRepository(a.db)
	creditsService := credits.NewService(creditsRepo, a.log)

	// Plan subscriptions and usage periods.
	billingRepo := billing.NewRepository(a.db)
	billingService := billing.NewService(billingRepo, catalogService, a.log)

	// Pricing engine on top of catalog and plan allowances.
	pricingEngine := pricing.NewEngine(catalogService, billingService, a.config.Pricing, a.log)

	// Orders.
	orderRepo := order.NewRepository(a.db)
	orderService := order.NewService(orderRepo, pricingEngine, creditsService, billingService, a.log)

	// Provider client with per-class breakers.
	breakers := provider.NewBreakers(a.config.Provider, a.metrics, a.log)
	providerClient := provider.NewClient(
		httpclient.New(a.config.Provider.HTTPClient),
		breakers,
		a.config.Provider,
		a.metrics,
		a.log,
	)

	// Fulfillment jobs.
	jobRepo := job.NewRepository(a.db)
	a.orchestrator = job.NewOrchestrator(jobRepo, providerClient, a.config.Worker, a.metrics, a.log)
	jobService := job.NewService(jobRepo, orderRepo, a.orchestrator, providerClient, a.log)
	if err := job.SeedTemplates(ctx, jobRepo, a.log); err != nil {
		return fmt.Errorf("seed workflow templates: %w", err)
	}
	if err := a.orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	// Payment webhooks.
	paymentRepo := payment.NewRepository(a.db)
	paymentService := payment.NewService(paymentRepo, creditsService, billingService, a.config.Payment, a.metrics, a.log)

	a.router = a.setupRouter(
		catalog.NewHandler(catalogService),
		credits.NewHandler(creditsService),
		order.NewHandler(orderService),
		job.NewHandler(jobService),
		payment.NewWebhookHandler(paymentService, a.log),
	)
	return nil
}

func (a *App) setupRouter(
	catalogHandler *catalog.Handler,
	creditsHandler *credits.Handler,
	orderHandler *order.Handler,
	jobHandler *job.Handler,
	webhookHandler *payment.WebhookHandler,
) *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(a.log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.log))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway notifications authenticate by signature, not bearer token.
	webhooks := r.Group("/webhooks")
	webhookHandler.RegisterRoutes(webhooks)

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(a.config.Auth.JWTSecret))
	{
		catalogHandler.RegisterRoutes(api)
		creditsHandler.RegisterRoutes(api)
		orderHandler.RegisterRoutes(api)
		jobHandler.RegisterRoutes(api)
	}

	return r
}
