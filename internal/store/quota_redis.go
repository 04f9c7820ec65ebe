package store

import (
    "context"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/quota"
)

// RedisLedger keeps the per-user monthly page counters in Redis hashes.
// The debit path is a single HINCRBY, so concurrent settlements for the
// same user serialize server-side.
type RedisLedger struct {
    client       *redis.Client
    defaultLimit int
}

func NewRedisLedger(redisURL string, defaultLimit int) (*RedisLedger, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    return &RedisLedger{client: c, defaultLimit: defaultLimit}, nil
}

func (s *RedisLedger) key(userID string) string { return "quota:" + userID }

func (s *RedisLedger) Close() error { return s.client.Close() }

// Ping checks redis connectivity.
func (s *RedisLedger) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Get returns the user's ledger record, seeding a fresh one with the
// default limit on first sight.
func (s *RedisLedger) Get(ctx context.Context, userID string) (quota.Record, error) {
    res, err := s.client.HGetAll(ctx, s.key(userID)).Result()
    if err != nil {
        return quota.Record{}, fmt.Errorf("ledger read %s: %w", userID, err)
    }
    if len(res) == 0 {
        rec := quota.Record{UserID: userID, MonthlyPageLimit: s.defaultLimit, LastResetAt: time.Now()}
        err := s.client.HSet(ctx, s.key(userID), map[string]interface{}{
            "limit":      rec.MonthlyPageLimit,
            "used":       0,
            "last_reset": rec.LastResetAt.Format(time.RFC3339Nano),
        }).Err()
        if err != nil {
            return quota.Record{}, fmt.Errorf("ledger seed %s: %w", userID, err)
        }
        return rec, nil
    }

    rec := quota.Record{UserID: userID, MonthlyPageLimit: s.defaultLimit}
    if v, err := strconv.Atoi(res["limit"]); err == nil { rec.MonthlyPageLimit = v }
    if v, err := strconv.Atoi(res["used"]); err == nil { rec.PagesProcessed = v }
    if t, err := time.Parse(time.RFC3339Nano, res["last_reset"]); err == nil { rec.LastResetAt = t }
    return rec, nil
}

// Debit adds pages to the user's monthly counter atomically.
func (s *RedisLedger) Debit(ctx context.Context, userID string, pages int) error {
    if pages <= 0 { return nil }
    if err := s.client.HIncrBy(ctx, s.key(userID), "used", int64(pages)).Err(); err != nil {
        return fmt.Errorf("ledger debit %s: %w", userID, err)
    }
    return nil
}

// ResetAll zeroes every ledger hash. A failure on one record is logged
// and counted; the sweep continues.
func (s *RedisLedger) ResetAll(ctx context.Context) (int, int, error) {
    var cursor uint64
    reset, skipped := 0, 0
    now := time.Now().Format(time.RFC3339Nano)
    for {
        keys, next, err := s.client.Scan(ctx, cursor, "quota:*", 100).Result()
        if err != nil {
            return reset, skipped, fmt.Errorf("ledger scan: %w", err)
        }
        for _, k := range keys {
            err := s.client.HSet(ctx, k, map[string]interface{}{"used": 0, "last_reset": now}).Err()
            if err != nil {
                log.Warn().Err(err).Str("key", k).Msg("quota reset failed for record; continuing")
                skipped++
                continue
            }
            reset++
        }
        cursor = next
        if cursor == 0 {
            break
        }
    }
    return reset, skipped, nil
}
