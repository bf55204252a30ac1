package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iwtcode/tomographyAdapter/internal/config"
	"github.com/iwtcode/tomographyAdapter/models"

	"github.com/segmentio/kafka-go"
)

// messageWriter - часть kafka.Writer, которой пользуется продюсер.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
}

// NewKafkaProducer создает продюсер событий. Событие уходит целиком, вместе
// с пикселями изображения; ключ сообщения - имя устройства.
func NewKafkaProducer(cfg config.KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer}
}

func (p *KafkaProducer) Name() string { return "kafka" }

// Publish отправляет событие в Kafka
func (p *KafkaProducer) Publish(ctx context.Context, ev models.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Device),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if ev.ImageName != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "image", Value: []byte(ev.ImageName)})
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close закрывает соединение с Kafka
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
