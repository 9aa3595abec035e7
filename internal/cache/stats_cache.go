// Package cache はパイプライン集計のキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eryai/salesdash/internal/model"
)

// pipelineStatsKey はパイプライン集計を保存するキー。
const pipelineStatsKey = "salesdash:pipeline_stats"

// StatsCache はパイプライン集計のキャッシュ。
type StatsCache interface {
	// GetPipelineStats はキャッシュ済みの集計を返す。未キャッシュならokはfalse。
	GetPipelineStats(ctx context.Context) (stats []model.PipelineStat, ok bool, err error)
	SetPipelineStats(ctx context.Context, stats []model.PipelineStat) error
	// Invalidate はキャッシュを破棄する。リードを変更したら呼ぶ。
	Invalidate(ctx context.Context) error
}

// NewRedisClient はredis://形式のURLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisStatsCache はRedisを使ったStatsCache。
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache はRedisStatsCacheを生成する。
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

// GetPipelineStats はキャッシュ済みの集計を返す。
func (c *RedisStatsCache) GetPipelineStats(ctx context.Context) ([]model.PipelineStat, bool, error) {
	raw, err := c.client.Get(ctx, pipelineStatsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pipeline stats from cache: %w", err)
	}

	var stats []model.PipelineStat
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached pipeline stats: %w", err)
	}
	return stats, true, nil
}

// SetPipelineStats は集計をTTL付きで保存する。
func (c *RedisStatsCache) SetPipelineStats(ctx context.Context, stats []model.PipelineStat) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline stats: %w", err)
	}
	if err := c.client.Set(ctx, pipelineStatsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pipeline stats in cache: %w", err)
	}
	return nil
}

// Invalidate はキャッシュを破棄する。
func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, pipelineStatsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate pipeline stats: %w", err)
	}
	return nil
}

// NopStatsCache は常に未キャッシュを返すStatsCache。REDIS_URL未設定時に使う。
type NopStatsCache struct{}

func (NopStatsCache) GetPipelineStats(context.Context) ([]model.PipelineStat, bool, error) {
	return nil, false, nil
}

func (NopStatsCache) SetPipelineStats(context.Context, []model.PipelineStat) error { return nil }

func (NopStatsCache) Invalidate(context.Context) error { return nil }

var (
	_ StatsCache = (*RedisStatsCache)(nil)
	_ StatsCache = NopStatsCache{}
)
