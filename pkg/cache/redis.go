// backend/pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"quizzems/internal/models"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

const leaderboardTTL = 24 * time.Hour

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisCacheFromClient(client)
}

func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func collectionKey(id string) string { return "collection:" + id }

func leaderboardKey(collectionID string) string { return "leaderboard:" + collectionID }

func (c *RedisCache) SetCollection(ctx context.Context, coll *models.RawCollection, ttl time.Duration) error {
	data, err := json.Marshal(coll)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, collectionKey(coll.ID), data, ttl).Err()
}

func (c *RedisCache) GetCollection(ctx context.Context, id string) (*models.RawCollection, error) {
	data, err := c.client.Get(ctx, collectionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var coll models.RawCollection
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *RedisCache) DeleteCollection(ctx context.Context, id string) error {
	return c.client.Del(ctx, collectionKey(id)).Err()
}

// SetBestScore records pct for the user unless a better score is already on
// the board. Boards that are not cached are left alone so a partial board is
// never served; they get rebuilt from the database on the next read. It
// reports whether the board changed.
func (c *RedisCache) SetBestScore(ctx context.Context, collectionID, userID string, pct int) (bool, error) {
	key := leaderboardKey(collectionID)
	updated := false
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil || n == 0 {
			return err
		}
		current, err := tx.ZScore(ctx, key, userID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && current >= float64(pct) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, key, &redis.Z{
				Score:  float64(pct),
				Member: userID,
			})
			pipe.Expire(ctx, key, leaderboardTTL)
			return nil
		})
		if err == nil {
			updated = true
		}
		return err
	}, key)
	return updated, err
}

// SetLeaderboard replaces the cached board of a collection.
func (c *RedisCache) SetLeaderboard(ctx context.Context, collectionID string, entries []models.LeaderboardEntry) error {
	key := leaderboardKey(collectionID)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	for _, entry := range entries {
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(entry.Percentage),
			Member: entry.UserID,
		})
	}
	pipe.Expire(ctx, key, leaderboardTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// GetLeaderboard returns the best scores, highest first. Usernames are not
// cached; only UserID and Percentage are filled. A limit <= 0 returns all.
func (c *RedisCache) GetLeaderboard(ctx context.Context, collectionID string, limit int) ([]models.LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey(collectionID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:     member,
			Percentage: int(z.Score),
		})
	}
	return entries, nil
}
