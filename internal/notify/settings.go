package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Settings resolves notification configuration: admin-editable values in the
// settings table, cached in Redis with a TTL, with environment variables as
// the fallback. It is injected into the channels explicitly rather than read
// through globals.
type Settings struct {
	db    *pgxpool.Pool
	redis *redis.Client
	ttl   time.Duration
}

func NewSettings(db *pgxpool.Pool, rdb *redis.Client, ttl time.Duration) *Settings {
	return &Settings{db: db, redis: rdb, ttl: ttl}
}

const settingsKeyPrefix = "settings:"

// Get returns the setting for key, falling back to the envKey environment
// variable when the database has no value (or is unreachable). It never
// returns an error: a notification setting that cannot be resolved must not
// fail the caller.
func (s *Settings) Get(ctx context.Context, key, envKey string) string {
	cacheKey := settingsKeyPrefix + key

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			return cached
		}
	}

	if s.db == nil {
		return os.Getenv(envKey)
	}

	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Str("key", key).Msg("settings: lookup failed, falling back to env")
		}
		return os.Getenv(envKey)
	}
	if value == "" {
		return os.Getenv(envKey)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, value, s.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("settings: failed to cache value")
		}
	}

	return value
}

// GetBool parses the setting as a boolean, returning def when the value is
// unset or malformed.
func (s *Settings) GetBool(ctx context.Context, key, envKey string, def bool) bool {
	raw := s.Get(ctx, key, envKey)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("settings: not a boolean, using default")
		return def
	}
	return v
}

// Set upserts an admin-editable setting and drops the cache so the next read
// sees the new value.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("settings: failed to set %q: %w", key, err)
	}
	if err := s.ClearCache(ctx); err != nil {
		log.Warn().Err(err).Msg("settings: failed to clear cache after update")
	}
	return nil
}

// ClearCache drops every cached setting, used after admin edits.
func (s *Settings) ClearCache(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	keys, err := s.redis.Keys(ctx, settingsKeyPrefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}
