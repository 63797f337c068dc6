package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/domain"

	"github.com/gomodule/redigo/redis"
)

// envelope wraps the cached plan with its own expiry timestamp. Redis TTL
// already bounds the entry's lifetime; the embedded expiry lets a read
// detect staleness created by a lagging plan document and evict proactively.
type envelope struct {
	ExpiresAt time.Time   `json:"expiresAt"`
	Plan      domain.Plan `json:"plan"`
}

// redisPlanCache implements PlanCache on a redigo connection pool.
type redisPlanCache struct {
	pool *redis.Pool
	now  func() time.Time
}

// NewPool builds a redigo pool from config.
func NewPool(cfg config.RedisConfig) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.Address)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisPlanCache creates a PlanCache backed by the given pool.
func NewRedisPlanCache(pool *redis.Pool) PlanCache {
	return &redisPlanCache{pool: pool, now: time.Now}
}

func planKey(userID string, planType domain.PlanType) string {
	return fmt.Sprintf("plans:%s:%s", planType, userID)
}

func (c *redisPlanCache) GetPlan(ctx context.Context, userID string, planType domain.PlanType) (*domain.Plan, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	key := planKey(userID, planType)
	data, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Corrupt entry; evict and report a miss.
		_, _ = conn.Do("DEL", key)
		return nil, ErrMiss
	}

	if !c.now().Before(env.ExpiresAt) {
		// Expired envelope: evict on read.
		_, _ = conn.Do("DEL", key)
		return nil, ErrMiss
	}

	return &env.Plan, nil
}

func (c *redisPlanCache) SetPlan(ctx context.Context, userID string, plan *domain.Plan, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return fmt.Errorf("invalid cache ttl %d", ttlSeconds)
	}

	env := envelope{
		ExpiresAt: plan.CacheExpiry,
		Plan:      *plan,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SETEX", planKey(userID, plan.Type), ttlSeconds, data)
	return err
}

func (c *redisPlanCache) DeletePlan(ctx context.Context, userID string, planType domain.PlanType) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", planKey(userID, planType))
	return err
}
