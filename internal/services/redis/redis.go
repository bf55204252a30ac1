package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iwtcode/tomographyAdapter/internal/config"
	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/models"

	"github.com/redis/go-redis/v9"
)

// EventStore публикует события в канал Redis и хранит последние из них в списке.
type EventStore struct {
	client     *redis.Client
	channel    string
	historyKey string
	size       int64
}

// NewEventStore подключается к Redis и проверяет соединение.
func NewEventStore(ctx context.Context, cfg config.RedisConfig) (*EventStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	size := int64(cfg.HistorySize)
	if size <= 0 {
		size = 1000
	}
	return &EventStore{
		client:     client,
		channel:    cfg.Channel,
		historyKey: cfg.Channel + ":history",
		size:       size,
	}, nil
}

func (s *EventStore) Name() string { return "redis" }

// Publish отправляет событие без пикселей в Pub/Sub и в историю.
func (s *EventStore) Publish(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(api.Compact(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, s.channel, data)
	pipe.LPush(ctx, s.historyKey, data)
	pipe.LTrim(ctx, s.historyKey, 0, s.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Recent возвращает до limit последних событий в порядке поступления.
func (s *EventStore) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 || int64(limit) > s.size {
		limit = int(s.size)
	}
	raw, err := s.client.LRange(ctx, s.historyKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	events := make([]models.Event, len(raw))
	for i, item := range raw {
		if err := json.Unmarshal([]byte(item), &events[len(raw)-1-i]); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
	}
	return events, nil
}

// Close закрывает соединение с Redis
func (s *EventStore) Close() error {
	return s.client.Close()
}
