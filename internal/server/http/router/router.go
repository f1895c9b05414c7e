package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
	"github.com/polkiloo/loyaltyledger/internal/metrics"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/server/http/handlers"
	"github.com/polkiloo/loyaltyledger/internal/server/http/middleware"
)

// Params lists router dependencies.
type Params struct {
	fx.In

	Facade  handlers.LoyaltyFacade
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Config  *config.Config
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(p.Logger))
	engine.Use(middleware.RequestMetrics(p.Metrics))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	ledgerHandler := handlers.NewLedgerHandler(p.Facade)
	awardHandler := handlers.NewAwardHandler(p.Facade)
	catalogHandler := handlers.NewCatalogHandler(p.Facade)
	redemptionHandler := handlers.NewRedemptionHandler(p.Facade)
	validationHandler := handlers.NewValidationHandler(p.Facade)
	healthHandler := handlers.NewHealthHandler(p.Facade)

	engine.GET("/healthz", healthHandler.Healthz)
	engine.GET("/metrics", gin.WrapH(p.Metrics.Handler()))

	api := engine.Group("/api")
	api.Use(middleware.AuthRequired(p.Facade))
	api.GET("/rewards/:store_id", catalogHandler.List)

	customer := api.Group("")
	customer.Use(middleware.RequireRole(pkgAuth.RoleCustomer))
	customer.GET("/balances/:store_id", ledgerHandler.Balance)
	customer.GET("/balances/:store_id/transactions", ledgerHandler.History)
	customer.POST("/redemptions", redemptionHandler.Issue)
	customer.GET("/redemptions", redemptionHandler.List)
	customer.GET("/redemptions/:id", redemptionHandler.Get)
	customer.POST("/redemptions/:id/proof", redemptionHandler.Regenerate)

	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: float64(p.Config.ValidationRatePerMinute),
		Burst:             p.Config.ValidationRateBurst,
	})
	store := api.Group("/store")
	store.Use(middleware.RequireRole(pkgAuth.RoleOperator))
	store.POST("/validations", limiter.Middleware(), validationHandler.Validate)
	store.POST("/redemptions/:id/cancel", validationHandler.Cancel)
	store.POST("/adjustments", ledgerHandler.Adjust)

	internal := api.Group("/internal")
	internal.Use(middleware.RequireRole(pkgAuth.RoleService))
	internal.POST("/awards", awardHandler.Award)
	internal.POST("/migrations", awardHandler.Migrate)
	internal.GET("/reconcile", ledgerHandler.Reconcile)
	internal.PUT("/rewards/:id", catalogHandler.Upsert)

	return engine
}
