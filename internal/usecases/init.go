package usecases

import "github.com/iwtcode/tomographyAdapter/internal/interfaces"

// NewUsecases - конструктор для всех use cases. history может быть nil.
func NewUsecases(manager interfaces.DeviceManager, history interfaces.EventHistory) interfaces.Usecases {
	return NewDeviceUsecase(manager, history)
}
