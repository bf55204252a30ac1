package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iwtcode/tomographyAdapter/internal/config"
	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/internal/metrics"
	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/internal/services/stream"
	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsecase struct {
	sent []api.CommandRequest
}

func (f *fakeUsecase) GetDevices() []models.DeviceInfo {
	return []models.DeviceInfo{{Name: "xrd1611", Kind: models.Detector, Online: true}}
}

func (f *fakeUsecase) GetDevice(name string) (*models.DeviceInfo, []string, error) {
	if name != "xrd1611" {
		return nil, nil, fmt.Errorf("%w %q", apperrors.ErrUnknownDevice, name)
	}
	return &models.DeviceInfo{Name: name}, []string{"acquire_image"}, nil
}

func (f *fakeUsecase) SendCommand(device string, req api.CommandRequest) error {
	if device != "xrd1611" {
		return fmt.Errorf("%w %q", apperrors.ErrUnknownDevice, device)
	}
	if req.Function == "bogus" {
		err := fmt.Errorf("unknown detector function %q", req.Function)
		return apperrors.NewAppError(apperrors.BadRequestCode, apperrors.UnknownFunction, err, true)
	}
	if req.Online {
		return fmt.Errorf("%w: %s", apperrors.ErrDeviceOffline, device)
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeUsecase) RecentEvents(context.Context, int) ([]models.Event, error) {
	return nil, fmt.Errorf("event history is not configured")
}

func setupTest(t *testing.T, tokenHash string) (http.Handler, *fakeUsecase) {
	t.Helper()
	logger := logging.NewLogger(&logging.Config{}, "TEST")
	hub := stream.NewHub(logger)
	t.Cleanup(func() { hub.Close() })

	uc := &fakeUsecase{}
	h := NewHandler(uc, hub, metrics.New(), logger)
	router := ProvideRouter(h, &config.AppConfig{GinMode: "test", APITokenHash: tokenHash})
	return router, uc
}

func do(router http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetDevices(t *testing.T) {
	router, _ := setupTest(t, "")

	rec := do(router, http.MethodGet, "/api/v1/devices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.DevicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "xrd1611", resp.Devices[0].Name)

	rec = do(router, http.MethodGet, "/api/v1/devices/nobody", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendCommand(t *testing.T) {
	router, uc := setupTest(t, "")

	rec := do(router, http.MethodPost, "/api/v1/devices/xrd1611/commands", `{"function":"acquire_image","args":[4]}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, uc.sent, 1)
	require.Equal(t, []any{4.0}, uc.sent[0].Args)

	rec = do(router, http.MethodPost, "/api/v1/devices/xrd1611/commands", `{"args":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/devices/xrd1611/commands", `{"function":"bogus"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown function: unknown detector function")

	rec = do(router, http.MethodPost, "/api/v1/devices/xrd1611/commands", `{"function":"abort","online":true}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/devices/xrd1612/commands", `{"function":"abort"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsHistoryUnavailable(t *testing.T) {
	router, _ := setupTest(t, "")

	rec := do(router, http.MethodGet, "/api/v1/events?limit=5", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTokenIsRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	router, _ := setupTest(t, string(hash))

	rec := do(router, http.MethodGet, "/api/v1/devices", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"message":"unauthorized"`)

	rec = do(router, http.MethodGet, "/api/v1/devices", "", http.Header{"Authorization": {"Bearer wrong"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/devices", "", http.Header{"Authorization": {"Bearer s3cret"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/devices?token=s3cret", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// служебные маршруты открыты
	rec = do(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
