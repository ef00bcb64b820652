package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/shopbot/internal/api/chat"
	"github.com/liliang-cn/shopbot/internal/api/middleware"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins     []string
	MaxRequestLength int
}

// SetupRouter sets up the Gin router
func SetupRouter(processor chat.Processor, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger.Named("http")))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	chat.NewHandler(processor, cfg.MaxRequestLength, logger).RegisterRoutes(r)

	return r
}
