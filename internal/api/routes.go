package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/xbee-digimesh/internal/api/middleware"
)

// RegisterRoutes 注册 /api/v1 控制路由
func RegisterRoutes(r gin.IRouter, h *Handler, authCfg middleware.AuthConfig, limit middleware.RateLimitConfig, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(limit))
	if authCfg.Enabled {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled")
	}

	v1.GET("/status", h.Status)
	v1.POST("/transmit", h.Transmit)
	v1.POST("/at/:command", h.Command)
	v1.GET("/nodes", h.Discover)
	v1.GET("/nodes/cached", h.CachedNodes)
	v1.GET("/nodes/directory", h.DirectoryNodes)
}
