package errors

import (
	"errors"
	"fmt"
)

const (
	BadRequest        = "bad request"
	NotFound          = "not_found"
	UnauthorizedError = "unauthorized"
	ConflictError     = "conflict"
	UnavailableError  = "unavailable"
	UnknownFunction   = "unknown function"

	BadRequestCode        = 400
	UnauthorizedErrorCode = 401
	NotFoundErrorCode     = 404
	ConflictErrorCode     = 409
	UnavailableErrorCode  = 503
)

// AppError представляет собой стандартизированную структуру ошибки для API.
type AppError struct {
	Code         int    `json:"code"`    // HTTP статус код
	Message      string `json:"message"` // Сообщение для клиента
	Err          error  `json:"-"`       // Внутренняя ошибка, не для клиента
	IsUserFacing bool   `json:"-"`       // Можно ли показывать `Err`
}

func (a *AppError) Error() string {
	if a == nil {
		return ""
	}
	if a.Err != nil {
		return fmt.Sprintf("%s (code: %d): %v", a.Message, a.Code, a.Err)
	}
	return fmt.Sprintf("%s (code: %d)", a.Message, a.Code)
}

func (a *AppError) Unwrap() error { return a.Err }

// NewAppError создает новый экземпляр AppError.
func NewAppError(httpCode int, message string, err error, isUserFacing bool) *AppError {
	return &AppError{
		Code:         httpCode,
		Message:      message,
		Err:          err,
		IsUserFacing: isUserFacing,
	}
}

var (
	ErrUnauthorized = errors.New("unauthorized")

	ErrUnknownDevice = errors.New("unknown device")
	ErrDeviceOffline = errors.New("device is not connected")
	ErrNameInUse     = errors.New("device name already connected")
	ErrShutdown      = errors.New("manager is shut down")
)
