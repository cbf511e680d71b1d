package state

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultRedisPrefix - префикс ключей состояния в Redis
const DefaultRedisPrefix = "movies_etl:state:"

// RedisStore - состояние в Redis, каждый ключ хранится отдельной строкой
type RedisStore struct {
	RedisClient *redis.Client
	Logger      *zap.SugaredLogger
	prefix      string
}

func NewRedisStore(redisClient *redis.Client, logger *zap.SugaredLogger, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisStore{
		RedisClient: redisClient,
		Logger:      logger,
		prefix:      prefix,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string, def string) (string, error) {
	value, err := s.RedisClient.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return def, nil
	}
	if err != nil {
		s.Logger.Errorw("Failed get state from Redis", "key", key, zap.Error(err))
		return "", err
	}

	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	if err := s.RedisClient.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		s.Logger.Errorw("Failed save state to Redis", "key", key, zap.Error(err))
		return err
	}

	s.Logger.Infow("State updated in Redis", "key", key, "value", value)

	return nil
}
