// Package messaging provides Redis Streams adapters for asynchronous
// triage.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamTriageInbound   = "triage:inbound"
	StreamTriageDecisions = "triage:decisions"
)

const statsKeyPrefix = "triage:stats:"

// RedisProducer publishes triage jobs and decision events to Redis
// Streams. It implements both out.MessageQueue (inbound enqueue) and
// out.AnalyticsSink (decision events).
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// EnqueueInbound publishes an inbound message for asynchronous triage.
func (p *RedisProducer) EnqueueInbound(ctx context.Context, msg *domain.InboundMessage) error {
	return p.publish(ctx, StreamTriageInbound, msg)
}

// Record publishes a routing event to the decisions stream and bumps
// the per-tenant counters.
func (p *RedisProducer) Record(ctx context.Context, event *out.RoutingEvent) error {
	if err := p.publish(ctx, StreamTriageDecisions, event); err != nil {
		return err
	}

	p.incrementStats(ctx, event)
	return nil
}

// incrementStats bumps the per-tenant counter hash. Failures here are
// not worth failing the event for.
func (p *RedisProducer) incrementStats(ctx context.Context, event *out.RoutingEvent) {
	tenant := event.TenantID
	if tenant == "" {
		tenant = "unresolved"
	}
	key := statsKeyPrefix + tenant

	pipe := p.client.Pipeline()
	pipe.HIncrBy(ctx, key, "processed", 1)
	pipe.HIncrBy(ctx, key, "category:"+string(event.Classification.Category), 1)
	pipe.HIncrBy(ctx, key, "method:"+string(event.Classification.Method), 1)
	if len(event.Decision.Escalations) > 0 {
		pipe.HIncrBy(ctx, key, "escalated", 1)
	}
	// Stats expire after 30 days of inactivity.
	pipe.Expire(ctx, key, 30*24*time.Hour)
	pipe.Exec(ctx)
}

// TenantStats reads the per-tenant counter hash.
func (p *RedisProducer) TenantStats(ctx context.Context, tenantID string) (map[string]string, error) {
	if tenantID == "" {
		tenantID = "unresolved"
	}

	stats, err := p.client.HGetAll(ctx, statsKeyPrefix+tenantID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant stats: %w", err)
	}
	return stats, nil
}

// publish publishes a payload to a stream.
func (p *RedisProducer) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

var (
	_ out.MessageQueue  = (*RedisProducer)(nil)
	_ out.AnalyticsSink = (*RedisProducer)(nil)
)
