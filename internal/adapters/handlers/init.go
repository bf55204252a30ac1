package handlers

import (
	"net/http"

	"github.com/iwtcode/tomographyAdapter/internal/config"
	"github.com/iwtcode/tomographyAdapter/internal/interfaces"
	"github.com/iwtcode/tomographyAdapter/internal/metrics"
	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/internal/services/stream"

	"github.com/gin-gonic/gin"
)

// Handler - структура для обработчиков HTTP-запросов
type Handler struct {
	usecase interfaces.Usecases
	hub     *stream.Hub
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewHandler создает новый экземпляр Handler. metrics может быть nil.
func NewHandler(usecase interfaces.Usecases, hub *stream.Hub, m *metrics.Metrics, logger *logging.Logger) *Handler {
	return &Handler{
		usecase: usecase,
		hub:     hub,
		metrics: m,
		logger:  logger.WithPrefix("HANDLER"),
	}
}

// ProvideRouter настраивает и возвращает HTTP-роутер
func ProvideRouter(h *Handler, cfg *config.AppConfig) http.Handler {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// Logger Middleware
	router.Use(LoggingMiddleware(h.logger))

	router.GET("/health", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	// Группа API v1
	v1 := router.Group("/api/v1", AuthMiddleware(cfg.APITokenHash, h.logger))
	{
		devices := v1.Group("/devices")
		{
			devices.GET("", h.GetDevices)
			devices.GET("/:name", h.GetDevice)
			devices.POST("/:name/commands", h.SendCommand)
		}

		events := v1.Group("/events")
		{
			events.GET("", h.RecentEvents)
			events.GET("/stream", h.StreamEvents)
		}
	}

	return router
}
