package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(logging.NewLogger(&logging.Config{}, "TEST"))
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return hub, conn
}

func TestPublishReachesClient(t *testing.T) {
	hub, conn := setupTest(t)

	img, err := protocol.NewArray(4, 4, make([]uint16, 16))
	require.NoError(t, err)
	ev := models.Event{Type: models.EventMessage, Device: "xrd1611", FunctionName: "EndAcqCallback", Payload: img, ImageName: "xrd1611_0000"}
	require.NoError(t, hub.Publish(context.Background(), ev))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "xrd1611_0000", decoded["image_name"])
	payload := decoded["payload"].(map[string]any)
	require.Equal(t, float64(32), payload["bytes"])
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, conn := setupTest(t)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishAfterClose(t *testing.T) {
	hub, _ := setupTest(t)
	hub.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	// буфер рассылки принимает событие или сообщает о закрытии
	for i := 0; i < sendBuffer+1; i++ {
		if err := hub.Publish(context.Background(), models.Event{Type: models.EventDiagnostic}); err != nil {
			require.ErrorContains(t, err, "closed")
			return
		}
	}
	t.Fatal("publish after close never failed")
}
