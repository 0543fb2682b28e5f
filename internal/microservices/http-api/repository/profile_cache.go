package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accounthub/internal/microservices/http-api/models"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("profile not cached")

// ProfileCache keeps the read-only user view close to the API so that
// GET /account/me does not hit postgres on every call.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*models.UserView, error)
	Set(ctx context.Context, userID string, view models.UserView) error
	Invalidate(ctx context.Context, userID string) error
}

type profileRedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileRedisCache wraps an existing client. A nil client gives a cache
// that never hits and never fails, which is what tests and redis-less
// deployments want.
func NewProfileRedisCache(client *redis.Client, ttl time.Duration) ProfileCache {
	return &profileRedisCache{client: client, ttl: ttl}
}

// NewRedisClient dials redis and verifies the connection with PING.
func NewRedisClient(addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func profileKey(userID string) string {
	return fmt.Sprintf("account:profile:%s", userID)
}

func (c *profileRedisCache) Get(ctx context.Context, userID string) (*models.UserView, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var view models.UserView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &view, nil
}

func (c *profileRedisCache) Set(ctx context.Context, userID string, view models.UserView) error {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(userID), raw, c.ttl).Err()
}

func (c *profileRedisCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, profileKey(userID)).Err()
}
