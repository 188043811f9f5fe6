package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medtracker-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	eventChannel  = "medtracker_events"
	eventTimeline = "events:timeline"
	eventTTL      = 7 * 24 * time.Hour
)

// RedisStore keeps the live event feed: each event is published for SSE
// streaming and kept on a short rolling timeline for feed backfill.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

func (s *RedisStore) PublishEvent(ctx context.Context, event models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("event:%d", event.CreatedAt.UnixNano())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, eventTTL)
	pipe.ZAdd(ctx, eventTimeline, redis.Z{
		Score:  float64(event.CreatedAt.Unix()),
		Member: key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// Publish event for SSE
	return s.client.Publish(ctx, eventChannel, data).Err()
}

func (s *RedisStore) GetRecentEvents(ctx context.Context) ([]models.Event, error) {
	// Newest first
	keys, err := s.client.ZRevRange(ctx, eventTimeline, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := []models.Event{}
	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Event expired, remove from timeline
			s.client.ZRem(ctx, eventTimeline, key)
			continue
		} else if err != nil {
			continue
		}

		var e models.Event
		if err := json.Unmarshal([]byte(val), &e); err == nil {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, eventChannel)
}
