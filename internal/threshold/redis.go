package threshold

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures Redis access for threshold snapshots.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisSnapshotter persists the detection threshold under a single Redis key.
type RedisSnapshotter struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotter connects to Redis and verifies the connection.
func NewRedisSnapshotter(cfg RedisConfig) (*RedisSnapshotter, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.Key) == "" {
		cfg.Key = "netsentry:detection_threshold"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis threshold store: %w", err)
	}

	return &RedisSnapshotter{client: client, key: cfg.Key}, nil
}

// Load reads the persisted threshold, reporting absence without error.
func (r *RedisSnapshotter) Load(ctx context.Context) (float64, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read threshold key: %w", err)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse threshold value %q: %w", raw, err)
	}
	return value, true, nil
}

// Save writes the threshold.
func (r *RedisSnapshotter) Save(ctx context.Context, value float64) error {
	if err := r.client.Set(ctx, r.key, strconv.FormatFloat(value, 'f', -1, 64), 0).Err(); err != nil {
		return fmt.Errorf("write threshold key: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisSnapshotter) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
