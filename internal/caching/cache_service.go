package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "billbook"

type CacheService interface {
	// GetJSON decodes the cached value into dst. found is false on a cache miss.
	GetJSON(ctx context.Context, key string, dst interface{}) (found bool, err error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// InvalidateUserReports drops every cached report for the user.
	InvalidateUserReports(ctx context.Context, userID uuid.UUID) error

	Ping(ctx context.Context) error
}

// ReportKey builds the cache key of one report: billbook:reports:<user>:<kind>[:part...].
func ReportKey(userID uuid.UUID, kind string, parts ...string) string {
	segments := append([]string{keyPrefix, "reports", userID.String(), kind}, parts...)
	return strings.Join(segments, ":")
}

type redisCacheService struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisClient connects to addr, which may be host:port or a redis:// URL. It logs, without failing, when the first ping does not answer.
func NewRedisClient(addr, password string, db int, logger zerolog.Logger) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", parsedAddr).Msg("redis ping failed on initialization")
	} else {
		logger.Debug().Str("addr", parsedAddr).Msg("redis connection established")
	}
	return client
}

// NewCacheService wraps an existing client.
func NewCacheService(client *redis.Client, logger zerolog.Logger) CacheService {
	return &redisCacheService{client: client, log: logger}
}

func (r *redisCacheService) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *redisCacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) InvalidateUserReports(ctx context.Context, userID uuid.UUID) error {
	pattern := ReportKey(userID, "*")
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	r.log.Debug().Str("user_id", userID.String()).Int("keys", len(keys)).Msg("invalidating report cache")
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
