package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/domain"
)

const liveStateChannelPrefix = "tj:broker_live_state:" // Pub/Sub channel per user: tj:broker_live_state:{user_id}

// RedisPublisher announces freshly written live state on Redis Pub/Sub so
// dashboards can refresh without polling the table.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, s *domain.BrokerLiveState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal live state event: %w", err)
	}

	if err := p.client.Publish(ctx, LiveStateChannel(s.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish live state event: %w", err)
	}

	return nil
}

// LiveStateChannel is the channel subscribers listen on for userID.
func LiveStateChannel(userID string) string {
	return fmt.Sprintf("%s%s", liveStateChannelPrefix, userID)
}

// NopPublisher is used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.BrokerLiveState) error { return nil }
