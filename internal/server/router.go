package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/uplinepay/uplinepay-backend/internal/handlers"
	"github.com/uplinepay/uplinepay-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware
	BalanceHandler *handlers.BalanceHandler
	UserHandler    *handlers.UserHandler
	SSEHandler     *handlers.SSEHandler
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Idempotency-Key"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Balance
	api.POST("/balance/credit", cfg.BalanceHandler.Credit)
	api.POST("/balance/recharge", cfg.BalanceHandler.Recharge)
	api.GET("/balance/transactions", cfg.BalanceHandler.Transactions)
	api.GET("/balance/summary", cfg.BalanceHandler.Summary)
	api.GET("/balance", cfg.BalanceHandler.Balance)

	// Users / hierarchy
	api.GET("/users/downline", cfg.UserHandler.Downline)
	api.GET("/users/immediate-downline", cfg.UserHandler.ImmediateDownline)
	api.GET("/users/all", cfg.UserHandler.AllUsers)
	api.GET("/users/rollup", cfg.UserHandler.Rollup)

	// Realtime
	api.GET("/sse/stream", cfg.SSEHandler.Stream)

	return router
}
