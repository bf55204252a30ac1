package interfaces

import (
	"context"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
)

// DeviceManager - контракт менеджера устройств, который использует сервис.
type DeviceManager interface {
	Post(device, function string, args ...any) error
	Devices() []models.DeviceInfo
	Family(device string) (*codes.Family, error)
	Events() <-chan models.Event
}

// EventSink получает каждое событие менеджера.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, ev models.Event) error
	Close() error
}

// EventHistory хранит последние события.
type EventHistory interface {
	Recent(ctx context.Context, limit int) ([]models.Event, error)
}
