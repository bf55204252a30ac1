package models

import devices "github.com/iwtcode/tomographyAdapter/models"

// ErrorResponse представляет стандартный ответ с ошибкой.
type ErrorResponse struct {
	Status string `json:"status" example:"error"`
	Error  struct {
		Code    int    `json:"code" example:"404"`
		Message string `json:"message" example:"unknown device"`
	} `json:"error"`
}

// MessageResponse представляет стандартный успешный ответ с сообщением.
type MessageResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message" example:"command queued"`
}

// DevicesResponse - состояние всех сконфигурированных устройств.
type DevicesResponse struct {
	Status  string               `json:"status" example:"ok"`
	Count   int                  `json:"count" example:"2"`
	Devices []devices.DeviceInfo `json:"devices"`
}

// DeviceResponse - состояние одного устройства и его функции.
type DeviceResponse struct {
	Status    string             `json:"status" example:"ok"`
	Device    devices.DeviceInfo `json:"device"`
	Functions []string           `json:"functions"`
}

// EventsResponse - последние события из истории.
type EventsResponse struct {
	Status string          `json:"status" example:"ok"`
	Events []devices.Event `json:"events"`
}
