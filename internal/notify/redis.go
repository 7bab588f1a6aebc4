package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/justsurfingit/eis/internal/dtos"
)

// RunCompletedChannel is the pub/sub channel run summaries are published on.
const RunCompletedChannel = "EIS_RUN_COMPLETED"

// Publisher is the slice of *redis.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type RedisNotifier struct {
	rdb Publisher
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedisNotifier(rdb Publisher) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Name() string { return "redis" }

type runEvent struct {
	Type  string        `json:"type"`
	Stats dtos.RunStats `json:"stats"`
}

func (n *RedisNotifier) NotifyRun(ctx context.Context, stats dtos.RunStats) error {
	event, err := json.Marshal(runEvent{Type: RunCompletedChannel, Stats: stats})
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if err := n.rdb.Publish(ctx, RunCompletedChannel, event).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", RunCompletedChannel, err)
	}
	return nil
}
