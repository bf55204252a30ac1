package handlers

import (
	"net/http"

	"github.com/iwtcode/tomographyAdapter/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// Health сообщает, что сервис работает.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetDevices возвращает все сконфигурированные устройства.
// @Summary Получить список устройств
// @Tags Devices
// @Produce json
// @Success 200 {object} models.DevicesResponse
// @Router /devices [get]
func (h *Handler) GetDevices(c *gin.Context) {
	devices := h.usecase.GetDevices()
	c.JSON(http.StatusOK, models.DevicesResponse{
		Status:  "ok",
		Count:   len(devices),
		Devices: devices,
	})
}

// GetDevice возвращает состояние устройства и список его функций.
// @Summary Получить устройство
// @Tags Devices
// @Produce json
// @Param name path string true "Имя устройства"
// @Success 200 {object} models.DeviceResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /devices/{name} [get]
func (h *Handler) GetDevice(c *gin.Context) {
	info, functions, err := h.usecase.GetDevice(c.Param("name"))
	if err != nil {
		h.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeviceResponse{Status: "ok", Device: *info, Functions: functions})
}

// SendCommand ставит команду в очередь устройства.
// @Summary Отправить команду
// @Description Команда уходит устройству сразу после рукопожатия, если оно еще не подключено.
// @Tags Devices
// @Accept json
// @Produce json
// @Param name path string true "Имя устройства"
// @Param input body models.CommandRequest true "Функция и аргументы"
// @Success 202 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /devices/{name}/commands [post]
func (h *Handler) SendCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	name := c.Param("name")
	if err := h.usecase.SendCommand(name, req); err != nil {
		h.FromError(c, err)
		return
	}

	h.logger.Info("Command queued", "device", name, "function", req.Function)
	c.JSON(http.StatusAccepted, models.MessageResponse{
		Status:  "ok",
		Message: req.Function + " queued for " + name,
	})
}
