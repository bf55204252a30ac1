package handlers

import (
	stderrors "errors"

	"github.com/iwtcode/tomographyAdapter/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ErrorResponse возвращает стандартизированный ответ с ошибкой
func (h *Handler) ErrorResponse(c *gin.Context, err error, statusCode int, message string, showError bool) {
	errorMessage := message
	if showError && err != nil {
		errorMessage = message + ": " + err.Error()
	}

	h.logger.Error(message, "error", err, "statusCode", statusCode)
	c.AbortWithStatusJSON(statusCode, gin.H{
		"status": "error",
		"error": gin.H{
			"code":    statusCode,
			"message": errorMessage,
		},
	})
}

// BadRequest возвращает ошибку 400
func (h *Handler) BadRequest(c *gin.Context, err error, message string) {
	if message == "" {
		message = errors.BadRequest
	}
	h.ErrorResponse(c, err, errors.BadRequestCode, message, true)
}

// NotFound возвращает ошибку 404
func (h *Handler) NotFound(c *gin.Context, err error) {
	h.ErrorResponse(c, err, errors.NotFoundErrorCode, errors.NotFound, true)
}

// FromError выбирает код ответа по ошибке менеджера.
func (h *Handler) FromError(c *gin.Context, err error) {
	var appErr *errors.AppError
	switch {
	case stderrors.As(err, &appErr):
		h.ErrorResponse(c, appErr.Err, appErr.Code, appErr.Message, appErr.IsUserFacing)
	case stderrors.Is(err, errors.ErrUnknownDevice):
		h.NotFound(c, err)
	case stderrors.Is(err, errors.ErrNameInUse):
		h.ErrorResponse(c, err, errors.ConflictErrorCode, errors.ConflictError, true)
	case stderrors.Is(err, errors.ErrShutdown), stderrors.Is(err, errors.ErrDeviceOffline):
		h.ErrorResponse(c, err, errors.UnavailableErrorCode, errors.UnavailableError, true)
	default:
		h.BadRequest(c, err, "")
	}
}
