package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"frequency/logger"
	"frequency/middleware"
)

type RouterConfig struct {
	WSHandler        *WSHandler
	FrequencyHandler *FrequencyHandler
	HistoryHandler   *HistoryHandler
	ContentHandler   *ContentHandler
	HealthHandler    *HealthHandler

	// Gatherer backs /metrics when set.
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.WSHandler != nil {
		r.GET("/ws", cfg.WSHandler.Serve)
	}
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
		}
		if cfg.FrequencyHandler != nil {
			api.GET("/frequencies", cfg.FrequencyHandler.FrequencyMap)
		}
		if cfg.ContentHandler != nil {
			api.GET("/users/:userId/content", cfg.ContentHandler.AvailableContent)
		}
		if cfg.HistoryHandler != nil {
			api.GET("/conversations/:characterId/history", cfg.HistoryHandler.History)
		}
	}

	return r
}
