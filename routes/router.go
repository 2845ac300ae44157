package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/config"
	"github.com/iara-orders/orders-api/controllers"
	"github.com/iara-orders/orders-api/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SetupRouter builds the gin engine with middleware and every /api/v1 route
func SetupRouter(cfg *config.Config, logger zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg)))
	if cfg.RateLimitEnabled() {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = max(1, int(cfg.RateLimitRPS))
		}
		router.Use(middleware.RateLimit(middleware.NewRateLimitStore(middleware.RateLimitConfig{
			Rate:  rate.Limit(cfg.RateLimitRPS),
			Burst: burst,
		})))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controllers.HealthCheck)
		v1.GET("/database/status", controllers.DatabaseStatus)

		v1.POST("/orders", controllers.CreateOrder)
		v1.POST("/orders/with-items", controllers.CreateOrderWithItems)
		v1.GET("/orders", controllers.ListOrders)
		v1.GET("/orders/:id", controllers.GetOrder)
		v1.PUT("/orders/:id", controllers.UpdateOrder)
		v1.DELETE("/orders/:id", controllers.DeleteOrder)
		v1.GET("/orders/:id/summary", controllers.OrderSummary)

		v1.GET("/orders/:id/items", controllers.ListOrderItems)
		v1.POST("/orders/:id/items", controllers.CreateOrderItem)
		v1.PUT("/orders/:id/items/:item_id", controllers.UpdateOrderItem)
		v1.DELETE("/orders/:id/items/:item_id", controllers.DeleteOrderItem)
		v1.GET("/order-items", controllers.ListAllItems)

		v1.GET("/stats", controllers.Stats)

		v1.GET("/export/orders/json", controllers.ExportOrdersJSON)
		v1.GET("/export/orders/sql", controllers.ExportOrdersSQL)
		v1.POST("/export/orders/archive", controllers.ArchiveOrders)
		v1.POST("/import/orders/json", controllers.ImportOrdersJSON)
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	}
	return corsCfg
}
