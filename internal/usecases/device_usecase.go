package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/internal/interfaces"
	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
)

const maxEvents = 1000

type DeviceUsecase struct {
	manager interfaces.DeviceManager
	history interfaces.EventHistory
}

func NewDeviceUsecase(manager interfaces.DeviceManager, history interfaces.EventHistory) *DeviceUsecase {
	return &DeviceUsecase{manager: manager, history: history}
}

func (u *DeviceUsecase) GetDevices() []models.DeviceInfo {
	return u.manager.Devices()
}

// GetDevice возвращает состояние устройства и имена его функций.
func (u *DeviceUsecase) GetDevice(name string) (*models.DeviceInfo, []string, error) {
	family, err := u.manager.Family(name)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range u.manager.Devices() {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			info := d
			return &info, family.FunctionNames(), nil
		}
	}
	return nil, nil, fmt.Errorf("%w %q", apperrors.ErrUnknownDevice, name)
}

// SendCommand ставит команду в очередь. Целые числа из JSON приходят как
// float64 и переводятся в int64, как их отправляет интерфейс оператора.
func (u *DeviceUsecase) SendCommand(device string, req api.CommandRequest) error {
	family, err := u.manager.Family(device)
	if err != nil {
		// Post публикует диагностику с подсказкой имени
		return u.manager.Post(device, req.Function)
	}
	if _, err := family.ParseFunction(req.Function); err != nil {
		return apperrors.NewAppError(apperrors.BadRequestCode, apperrors.UnknownFunction, err, true)
	}
	if req.Online {
		info, _, err := u.GetDevice(device)
		if err != nil {
			return err
		}
		if !info.Online {
			return fmt.Errorf("%w: %s", apperrors.ErrDeviceOffline, info.Name)
		}
	}
	return u.manager.Post(device, req.Function, normalizeArgs(req.Args)...)
}

// RecentEvents читает историю событий, если она настроена.
func (u *DeviceUsecase) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if u.history == nil {
		return nil, errors.New("event history is not configured")
	}
	if limit <= 0 || limit > maxEvents {
		limit = maxEvents
	}
	return u.history.Recent(ctx, limit)
}

func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case float64:
			if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				out[i] = int64(v)
			} else {
				out[i] = v
			}
		case []any:
			out[i] = normalizeArgs(v)
		default:
			out[i] = v
		}
	}
	return out
}
