package cache

import (
	"context"
	"encoding/json"
	"time"

	"murmur/app/models"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const versionKey = "murmur:feed:version"

// Redis is a FeedCache shared by every process talking to the same server.
// Cache failures are logged and treated as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *log.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

func (r *Redis) version(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (r *Redis) Get(ctx context.Context, page, size int) (*models.Page[*models.Post], int64) {
	version, err := r.version(ctx)
	if err != nil {
		r.logger.Warn("feed cache version lookup failed", "err", err)
		return nil, -1
	}
	data, err := r.client.Get(ctx, PageKey(version, page, size)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("feed cache read failed", "err", err)
		}
		return nil, version
	}
	var p models.Page[*models.Post]
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("feed cache entry unreadable", "err", err)
		return nil, version
	}
	return &p, version
}

// Put stores p unless the version read by Get has failed.
func (r *Redis) Put(ctx context.Context, version int64, page, size int, p *models.Page[*models.Post]) {
	if version < 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		r.logger.Warn("feed cache encode failed", "err", err)
		return
	}
	if err := r.client.Set(ctx, PageKey(version, page, size), data, r.ttl).Err(); err != nil {
		r.logger.Warn("feed cache write failed", "err", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Incr(ctx, versionKey).Err(); err != nil {
		r.logger.Error("feed cache invalidation failed", "err", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
