package usecases

import (
	"context"
	"fmt"
	"testing"

	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/stretchr/testify/require"
)

type posted struct {
	device, function string
	args             []any
}

type fakeManager struct {
	posts []posted
}

func (f *fakeManager) Post(device, function string, args ...any) error {
	if _, err := f.Family(device); err != nil {
		return err
	}
	f.posts = append(f.posts, posted{device, function, args})
	return nil
}

func (f *fakeManager) Devices() []models.DeviceInfo {
	return []models.DeviceInfo{
		{Name: "xrd1611", Kind: models.Detector, Online: true},
		{Name: "Soloist", Kind: models.Table},
	}
}

func (f *fakeManager) Family(name string) (*codes.Family, error) {
	switch name {
	case "xrd1611":
		return codes.Detector, nil
	case "soloist", "Soloist":
		return codes.Table, nil
	}
	return nil, fmt.Errorf("%w %q", apperrors.ErrUnknownDevice, name)
}

func (f *fakeManager) Events() <-chan models.Event { return nil }

type fakeHistory struct {
	limit int
}

func (h *fakeHistory) Recent(_ context.Context, limit int) ([]models.Event, error) {
	h.limit = limit
	return []models.Event{{Type: models.EventReady, Device: "xrd1611"}}, nil
}

func TestSendCommandNormalizesJSONNumbers(t *testing.T) {
	mgr := &fakeManager{}
	u := NewDeviceUsecase(mgr, nil)

	err := u.SendCommand("Soloist", api.CommandRequest{Function: "move", Args: []any{90.0, 2.5, []any{1.0, "x"}}})
	require.NoError(t, err)
	require.Len(t, mgr.posts, 1)
	require.Equal(t, []any{int64(90), 2.5, []any{int64(1), "x"}}, mgr.posts[0].args)
}

func TestSendCommandRejections(t *testing.T) {
	mgr := &fakeManager{}
	u := NewDeviceUsecase(mgr, nil)

	err := u.SendCommand("xrd1612", api.CommandRequest{Function: "abort"})
	require.ErrorIs(t, err, apperrors.ErrUnknownDevice)

	err = u.SendCommand("Soloist", api.CommandRequest{Function: "teleport"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.BadRequestCode, appErr.Code)
	require.ErrorContains(t, err, "unknown table function")

	err = u.SendCommand("Soloist", api.CommandRequest{Function: "home", Online: true})
	require.ErrorIs(t, err, apperrors.ErrDeviceOffline)

	// без Online команда ждет подключения в очереди
	require.NoError(t, u.SendCommand("Soloist", api.CommandRequest{Function: "home"}))
	require.NoError(t, u.SendCommand("xrd1611", api.CommandRequest{Function: "abort", Online: true}))
	require.Len(t, mgr.posts, 2)
}

func TestGetDeviceListsFunctions(t *testing.T) {
	u := NewDeviceUsecase(&fakeManager{}, nil)

	info, functions, err := u.GetDevice("soloist")
	require.NoError(t, err)
	require.Equal(t, "Soloist", info.Name)
	require.Contains(t, functions, "home")

	_, _, err = u.GetDevice("nobody")
	require.ErrorIs(t, err, apperrors.ErrUnknownDevice)
}

func TestRecentEvents(t *testing.T) {
	u := NewDeviceUsecase(&fakeManager{}, nil)
	_, err := u.RecentEvents(context.Background(), 10)
	require.ErrorContains(t, err, "not configured")

	h := &fakeHistory{}
	u = NewDeviceUsecase(&fakeManager{}, h)
	events, err := u.RecentEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, maxEvents, h.limit)
}
