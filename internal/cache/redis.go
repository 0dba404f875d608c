package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrSnapshotNotFound is returned when no snapshot is cached for a wallet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// MaxRecent caps the recent operations list
	MaxRecent int64
	// SnapshotTTL is how long a cached dashboard snapshot stays readable
	SnapshotTTL time.Duration

	Logger *logrus.Logger
}

// RedisCache implements storage.OperationCache and storage.SnapshotCache
type RedisCache struct {
	client      *redis.Client
	maxRecent   int64
	snapshotTTL time.Duration
	logger      *logrus.Logger
}

func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Addr, err)
	}

	return newRedisCache(client, cfg), nil
}

func newRedisCache(client *redis.Client, cfg RedisConfig) *RedisCache {
	if cfg.MaxRecent <= 0 {
		cfg.MaxRecent = constants.MaxRecentOperations
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = constants.SnapshotTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &RedisCache{
		client:      client,
		maxRecent:   cfg.MaxRecent,
		snapshotTTL: cfg.SnapshotTTL,
		logger:      cfg.Logger,
	}
}

// Client exposes the underlying connection for components that share it
// (the flags store).
func (r *RedisCache) Client() *redis.Client { return r.client }

func (r *RedisCache) AddRecentOperation(ctx context.Context, op *models.OperationEvent) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentOperations, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentOperations, 0, r.maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent operation: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentOperations(ctx context.Context, limit int64) ([]*models.OperationEvent, error) {
	if limit <= 0 || limit > r.maxRecent {
		limit = r.maxRecent
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentOperations, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent operations: %w", err)
	}

	out := make([]*models.OperationEvent, 0, len(vals))
	for _, v := range vals {
		var op models.OperationEvent
		if err := json.Unmarshal([]byte(v), &op); err != nil {
			r.logger.WithError(err).Warn("skipping malformed operation in recent list")
			continue
		}
		out = append(out, &op)
	}
	return out, nil
}

func (r *RedisCache) SetSnapshot(ctx context.Context, snap *models.DashboardSnapshot) error {
	if snap == nil || snap.Owner == "" {
		return fmt.Errorf("snapshot owner is required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, constants.RedisKeySnapshotPrefix+snap.Owner, data, r.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

func (r *RedisCache) GetSnapshot(ctx context.Context, owner string) (*models.DashboardSnapshot, error) {
	val, err := r.client.Get(ctx, constants.RedisKeySnapshotPrefix+owner).Result()
	if err == redis.Nil {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snap models.DashboardSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
