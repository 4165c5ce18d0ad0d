// Package http exposes the auth service over gin.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/questlabs/walletgate/service"
)

// SetupRouter sets up the gin router.
func SetupRouter(authService *service.AuthService, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware())

	handlers := NewAuthHandlers(authService, log)

	auth := router.Group("/auth")
	{
		auth.POST("/wallet/connect", handlers.Connect)
		auth.POST("/wallet/authenticate", handlers.Authenticate)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
