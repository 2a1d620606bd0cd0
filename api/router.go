package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"backend_cmms/config"
	"backend_cmms/middleware"
	"backend_cmms/services"
)

// Services набор сервисов, обслуживающих HTTP API
type Services struct {
	Auth          *services.AuthService
	Audit         *services.AuditService
	Cache         *services.CacheService
	Notifications *services.NotificationService
	Costs         *services.CostService
	Rates         *services.LaborRateService
	WorkOrders    *services.WorkOrderService
	Planning      *services.PlanningService
	Capacity      *services.CapacityService
	Accuracy      *services.PlanningAccuracyService
	Inventory     *services.InventoryService
	Production    *services.ProductionService
	Oee           *services.OeeService
	Reports       *services.ReportService
}

// NewServices собирает сервисы по конфигурации.
// redisClient может быть nil, тогда кэш и rate limit отключены.
func NewServices(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, sender services.MessageSender) *Services {
	audit := services.NewAuditService(db)
	cache := services.NewCacheService(redisClient)
	notifications := services.NewNotificationService(db, sender, cfg.External.TelegramChatID)
	costs := services.NewCostService(db)
	rates := services.NewLaborRateService(db, audit)

	workOrders := services.NewWorkOrderService(db, costs, rates, audit, notifications, cache, cfg.Maintenance.StockPolicy)
	// Ноль бывает только у конфигурации, собранной без Validate
	if cfg.Maintenance.OvertimeFromHour > 0 {
		workOrders.OvertimeFromHour = cfg.Maintenance.OvertimeFromHour
	}

	accuracy := services.NewPlanningAccuracyService(db)
	oee := services.NewOeeService(db, cache, cfg.Maintenance.AnalyticsCacheTTL)

	return &Services{
		Auth:          services.NewAuthService(db, cfg.JWT),
		Audit:         audit,
		Cache:         cache,
		Notifications: notifications,
		Costs:         costs,
		Rates:         rates,
		WorkOrders:    workOrders,
		Planning:      services.NewPlanningService(db, audit, notifications),
		Capacity:      services.NewCapacityService(db),
		Accuracy:      accuracy,
		Inventory:     services.NewInventoryService(db, audit, notifications),
		Production:    services.NewProductionService(db, audit, cache),
		Oee:           oee,
		Reports:       services.NewReportService(oee, accuracy),
	}
}

// corsConfig переводит настройки CORS в конфигурацию gin-contrib/cors
func corsConfig(cfg config.CORSConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	return corsCfg
}

// SetupRouter настраивает маршруты HTTP API
func SetupRouter(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, svc *Services) *gin.Engine {
	if !cfg.App.Debug && !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(corsConfig(cfg.CORS)))
	if maxBytes, err := cfg.MaxRequestBytes(); err == nil && maxBytes > 0 {
		r.Use(middleware.BodyLimit(maxBytes))
	}

	r.GET("/ping", func(c *gin.Context) {
		status := "connected"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "unavailable"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"message":  "pong",
			"database": status,
			"cache":    svc.Cache.Enabled(),
		})
	})

	authAPI := NewAuthAPI(svc.Auth)
	r.POST("/api/auth/token", middleware.AuthRateLimit(redisClient), authAPI.IssueToken)

	authMiddleware := middleware.NewAuthMiddleware(svc.Auth)
	tenantMiddleware := middleware.NewTenantMiddleware(db, svc.Cache)

	protected := r.Group("/api")
	protected.Use(authMiddleware.RequireAuth())
	protected.Use(tenantMiddleware.SetTenant())
	protected.Use(middleware.ModerateRateLimit(redisClient, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow))

	NewWorkOrderAPI(svc.WorkOrders, svc.Costs).RegisterRoutes(protected)
	NewPlanningAPI(svc.Planning, svc.Capacity, svc.Accuracy).RegisterRoutes(protected)
	NewLaborRateAPI(svc.Rates).RegisterRoutes(protected)
	NewInventoryAPI(svc.Inventory).RegisterRoutes(protected)
	NewProductionAPI(svc.Production).RegisterRoutes(protected)
	NewAnalyticsAPI(svc.Oee, svc.Reports).RegisterRoutes(protected)
	NewJournalAPI(svc.Audit, svc.Notifications).RegisterRoutes(protected)

	return r
}
