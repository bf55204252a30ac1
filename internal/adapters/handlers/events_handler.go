package handlers

import (
	"net/http"
	"strconv"

	"github.com/iwtcode/tomographyAdapter/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// RecentEvents возвращает последние события из истории.
// @Summary История событий
// @Tags Events
// @Produce json
// @Param limit query int false "Сколько событий вернуть"
// @Success 200 {object} models.EventsResponse
// @Router /events [get]
func (h *Handler) RecentEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := h.usecase.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.ErrorResponse(c, err, http.StatusServiceUnavailable, "event history unavailable", true)
		return
	}
	c.JSON(http.StatusOK, models.EventsResponse{Status: "ok", Events: events})
}

// StreamEvents подписывает websocket-клиента на поток событий.
// @Summary Поток событий
// @Tags Events
// @Router /events/stream [get]
func (h *Handler) StreamEvents(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
	}
}
