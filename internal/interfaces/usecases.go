package interfaces

import (
	"context"

	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/models"
)

// Usecases - это агрегирующий интерфейс для всех use cases
type Usecases interface {
	GetDevices() []models.DeviceInfo
	GetDevice(name string) (*models.DeviceInfo, []string, error)
	SendCommand(device string, req api.CommandRequest) error
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}
