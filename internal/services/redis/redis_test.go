package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iwtcode/tomographyAdapter/internal/config"
	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/stretchr/testify/require"
)

// Тест работает с настоящим Redis по REDIS_ADDR.
func setupTest(t *testing.T) *EventStore {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewEventStore(ctx, config.RedisConfig{
		Addr:        addr,
		Channel:     "tomography:test:" + t.Name(),
		HistorySize: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.client.Del(context.Background(), store.historyKey)
		store.Close()
	})
	return store
}

func TestHistoryKeepsLastEvents(t *testing.T) {
	store := setupTest(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Publish(ctx, models.Event{Type: models.EventDiagnostic, Text: text}))
	}

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "b", events[0].Text)
	require.Equal(t, "d", events[2].Text)
}

func TestImagesAreStoredWithoutPixels(t *testing.T) {
	store := setupTest(t)
	ctx := context.Background()

	img, err := protocol.NewArray(2, 2, []uint16{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, store.Publish(ctx, models.Event{Type: models.EventMessage, Device: "xrd1611", Payload: img}))

	events, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	info, ok := events[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(8), info["bytes"])
}
