package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/config"
	"github.com/tarotdesk/relay-server/internal/core"
)

// NewServer builds the relay's HTTP server: health, metrics, the
// WebSocket endpoint, and the service-key-guarded internal surface.
func NewServer(hub *core.Hub, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.AuthGrace, cfg.MessageRateLimit, logger)))

	ops := NewOpsHandlers(hub, logger)
	internal := router.Group("/internal", ServiceKeyMiddleware(cfg.ServiceKeyHash, logger))
	internal.POST("/sessions/:id/refresh", ops.RefreshSession)
	internal.GET("/stats", ops.Stats)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
