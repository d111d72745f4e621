package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
)

// RedisChannel keeps the latest state of each game under a key and announces
// every save on a pub/sub channel.
type RedisChannel struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisChannel connects to redisURL (redis:// or rediss://, see
// redis.ParseURL) and checks the connection. Snapshots expire after ttl; zero
// keeps them.
func NewRedisChannel(ctx context.Context, redisURL string, ttl time.Duration) (*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisChannel{rdb: rdb, ttl: ttl}, nil
}

// NewRedisChannelFromClient wraps an existing client.
func NewRedisChannelFromClient(rdb *redis.Client, ttl time.Duration) *RedisChannel {
	return &RedisChannel{rdb: rdb, ttl: ttl}
}

func (c *RedisChannel) Close() error {
	return c.rdb.Close()
}

func stateKey(gameID string) string { return "bgtable:game:" + strings.TrimSpace(gameID) }
func updateTopic(gameID string) string { return "bgtable:game:" + strings.TrimSpace(gameID) + ":updates" }

// saveScript stores the snapshot and announces it unless the stored version
// is newer. KEYS: snapshot hash, update topic. ARGV: state, version, ttl ms.
var saveScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[1], 'version', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)

// Save writes the snapshot and publishes it atomically. A state older than
// the stored one is ignored.
func (c *RedisChannel) Save(ctx context.Context, gameID string, gs engine.GameState) error {
	data, err := external.MarshalState(gs)
	if err != nil {
		return err
	}
	stored, err := saveScript.Run(ctx, c.rdb,
		[]string{stateKey(gameID), updateTopic(gameID)},
		data, gs.Version, c.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis save %s: %w", gameID, err)
	}
	if stored == 0 {
		log.Debug().Str("game", gameID).Uint64("version", gs.Version).Msg("redis-stale-save-ignored")
	}
	return nil
}

// Load reads the snapshot.
func (c *RedisChannel) Load(ctx context.Context, gameID string) (engine.GameState, error) {
	data, err := c.rdb.HGet(ctx, stateKey(gameID), "state").Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.GameState{}, ErrNoSnapshot
	}
	if err != nil {
		return engine.GameState{}, err
	}
	return external.UnmarshalState(data)
}

// Subscribe listens on the game's pub/sub channel in its own goroutine.
func (c *RedisChannel) Subscribe(ctx context.Context, gameID string, fn Listener) (func(), error) {
	ps := c.rdb.Subscribe(ctx, updateTopic(gameID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", gameID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				gs, err := external.UnmarshalState([]byte(msg.Payload))
				if err != nil {
					log.Warn().Err(err).Str("game", gameID).Msg("dropping-undecodable-state")
					continue
				}
				fn(gs)
			}
		}
	}()
	return cancel, nil
}
