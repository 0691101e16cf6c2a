package result

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	keyResults     = "csa:results"
	maxResultsKept = 100
)

// RedisStore keeps the latest finished games and per player label counters.
type RedisStore struct{ rdb *redis.Client }

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

// NewRedisStoreFromURL parses a redis:// URL.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt)), nil
}

func (s *RedisStore) keyStats(player string) string {
	return "csa:stats:" + strings.TrimSpace(player)
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Save(ctx context.Context, g Game) error {
	raw, err := json.Marshal(g.DTO())
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, keyResults, raw)
	pipe.LTrim(ctx, keyResults, 0, maxResultsKept-1)
	if player := g.Player(); player != "" {
		for _, label := range g.Labels {
			pipe.HIncrBy(ctx, s.keyStats(player), label, 1)
		}
		pipe.HIncrBy(ctx, s.keyStats(player), "games", 1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Stats returns the label counters of player.
func (s *RedisStore) Stats(ctx context.Context, player string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, s.keyStats(player)).Result()
}

// Recent returns up to n of the newest results, newest first.
func (s *RedisStore) Recent(ctx context.Context, n int64) ([][]byte, error) {
	vals, err := s.rdb.LRange(ctx, keyResults, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
