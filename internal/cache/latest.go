package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"babywatch/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	latestKeyPrefix = "babywatch:owner:"
	latestKeySuffix = ":latest"
	latestTTL       = 24 * time.Hour
)

// LatestCache owner 最新采样记录的 Redis 缓存
// 摄入管道 best-effort 写入；实时连接建立时用它做首屏快照
type LatestCache struct {
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewLatestCache 创建缓存
func NewLatestCache(redisClient *redis.Client, logger *zap.Logger) *LatestCache {
	return &LatestCache{
		redisClient: redisClient,
		logger:      logger,
	}
}

func latestKey(ownerID string) string {
	return latestKeyPrefix + ownerID + latestKeySuffix
}

// SetLatest 缓存 owner 的最新采样记录（带 TTL）
func (c *LatestCache) SetLatest(ctx context.Context, sample *domain.Sample) error {
	jsonData, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	if err := c.redisClient.Set(ctx, latestKey(sample.OwnerID), jsonData, latestTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache latest sample: %w", err)
	}

	return nil
}

// GetLatest 读取 owner 的最新采样记录；缓存未命中返回 (nil, nil)
func (c *LatestCache) GetLatest(ctx context.Context, ownerID string) (*domain.Sample, error) {
	val, err := c.redisClient.Get(ctx, latestKey(ownerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest sample: %w", err)
	}

	var sample domain.Sample
	if err := json.Unmarshal([]byte(val), &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest sample: %w", err)
	}

	return &sample, nil
}
