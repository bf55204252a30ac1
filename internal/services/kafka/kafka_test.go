package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishKeysByDevice(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaProducer{writer: w}

	ev := models.Event{
		Type:      models.EventMessage,
		Device:    "xrd1611",
		Function:  42,
		ImageName: "xrd1611_0003",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "xrd1611", string(msg.Key))
	require.Equal(t, ev.Timestamp, msg.Time)
	require.Len(t, msg.Headers, 2)
	require.Equal(t, "xrd1611_0003", string(msg.Headers[1].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, "message", decoded["type"])
	require.Equal(t, "detector", decoded["kind"])

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}
