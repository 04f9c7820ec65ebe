package store

import (
    "context"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisPromotions looks up time-bounded unlimited-processing grants.
// Grants are written by the redemption flow; this service only reads
// them, plus an explicit deactivate for admin tooling.
type RedisPromotions struct {
    client *redis.Client
}

func NewRedisPromotions(redisURL string) (*RedisPromotions, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    return &RedisPromotions{client: c}, nil
}

func (s *RedisPromotions) key(userID string) string { return "promo:" + userID }

func (s *RedisPromotions) Close() error { return s.client.Close() }

// HasActiveOverride reports whether the user holds an unexpired grant.
func (s *RedisPromotions) HasActiveOverride(ctx context.Context, userID string) (bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(userID)).Result()
    if err != nil {
        return false, fmt.Errorf("promo read %s: %w", userID, err)
    }
    if len(res) == 0 || res["active"] != "1" {
        return false, nil
    }
    exp, err := time.Parse(time.RFC3339Nano, res["expires_at"])
    if err != nil {
        return false, nil
    }
    return time.Now().Before(exp), nil
}

// Grant activates an override for the given duration.
func (s *RedisPromotions) Grant(ctx context.Context, userID string, d time.Duration) error {
    exp := time.Now().Add(d)
    err := s.client.HSet(ctx, s.key(userID), map[string]interface{}{
        "active":     "1",
        "expires_at": exp.Format(time.RFC3339Nano),
    }).Err()
    if err != nil {
        return fmt.Errorf("promo grant %s: %w", userID, err)
    }
    // key expires shortly after the grant does
    return s.client.Expire(ctx, s.key(userID), d+time.Hour).Err()
}

// Deactivate revokes the override before its natural expiry.
func (s *RedisPromotions) Deactivate(ctx context.Context, userID string) error {
    return s.client.HSet(ctx, s.key(userID), "active", "0").Err()
}
