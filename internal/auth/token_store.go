package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidToken Token 不存在或已过期
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier 身份提供方接口：校验调用方并给出稳定的 owner 标识
// 核心信任返回的标识，不做二次校验
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// tokenKeyPrefix Redis 会话键前缀
const tokenKeyPrefix = "auth:token:"

// RedisTokenStore 基于 Redis 的不透明会话 Token 存储
// 只存 Token 的 sha256，泄露 Redis 内容不等于泄露 Token 本身
type RedisTokenStore struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
}

// NewRedisTokenStore 创建 Token 存储
func NewRedisTokenStore(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisTokenStore {
	return &RedisTokenStore{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

var _ TokenVerifier = (*RedisTokenStore)(nil)

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

// Issue 为 owner 签发一个新 Token（带 TTL）
func (s *RedisTokenStore) Issue(ctx context.Context, ownerID string) (string, error) {
	token := uuid.NewString()

	if err := s.redisClient.Set(ctx, tokenKey(token), ownerID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.Info("Token issued", zap.String("owner_id", ownerID))
	return token, nil
}

// Verify 校验 Token 并返回 owner 标识
func (s *RedisTokenStore) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	ownerID, err := s.redisClient.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to look up token: %w", err)
	}

	return ownerID, nil
}

// Revoke 吊销 Token（幂等）
func (s *RedisTokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.redisClient.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
