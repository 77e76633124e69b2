package router

import (
	"time"

	"carledger/internal/config"
	"carledger/internal/handler"
	"carledger/internal/middleware"
	"carledger/internal/repository"
	"carledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	carRepo := repository.NewCarRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	reconcileSvc := service.NewReconcileService(carRepo, ledgerRepo, rdb, cfg)
	analyticsSvc := service.NewAnalyticsService(carRepo, ledgerRepo, rdb, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	importsH := handler.NewImportHandler(reconcileSvc)
	analyticsH := handler.NewAnalyticsHandler(analyticsSvc, rdb, cfg)
	carsH := handler.NewCarsHandler(carRepo, analyticsSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db, rdb))

	v1 := r.Group("/v1")
	{
		imports := v1.Group("/imports", middleware.ImportRateLimiter())
		{
			imports.POST("", importsH.ImportSnapshot)
			imports.POST("/rows", importsH.ImportRows)
		}

		cars := v1.Group("/cars")
		{
			cars.GET("", carsH.List)
			cars.GET("/aggregates", carsH.Aggregates)
			cars.GET("/:stockn/stats", carsH.Stats)
		}

		screens := v1.Group("/screens")
		{
			screens.GET("/low-recent-sales", analyticsH.LowRecentSales)
			screens.GET("/unprofitable-aging", analyticsH.UnprofitableAging)
			screens.GET("/best-purchases", analyticsH.BestPurchases)
			screens.GET("/report", analyticsH.ScreenReport)
		}

		rollups := v1.Group("/rollups")
		{
			rollups.GET("/monthly-income", analyticsH.MonthlyIncome)
			rollups.GET("/monthly-activity", analyticsH.MonthlyActivity)
		}
	}

	return r
}
