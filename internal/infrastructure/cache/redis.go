package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/redis/go-redis/v9"
)

var errStaleGeneration = errors.New("cache key invalidated since read")

// Redis stores entries as JSON under <prefix>:<kind>:<key> and invalidation
// counters under <prefix>:gen:<kind>:<key>. Keys carry no TTL; staleness is
// judged on read like the memory driver.
type Redis struct {
	client        *redis.Client
	keyPrefix     string
	schemaVersion int
	now           Clock
	logger        logging.Logger
}

type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	KeyPrefix     string
	SchemaVersion int
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, opts RedisOptions, logger logging.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisFromClient(client, opts.KeyPrefix, opts.SchemaVersion, logger), nil
}

func NewRedisFromClient(client *redis.Client, keyPrefix string, schemaVersion int, logger logging.Logger) *Redis {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Redis{
		client:        client,
		keyPrefix:     keyPrefix,
		schemaVersion: schemaVersion,
		now:           time.Now,
		logger:        logger,
	}
}

func (r *Redis) WithClock(now Clock) *Redis {
	r.now = now
	return r
}

func (r *Redis) key(kind Kind, key string) string {
	if r.keyPrefix == "" {
		return entryKey(kind, key)
	}
	return r.keyPrefix + ":" + entryKey(kind, key)
}

// Get treats every Redis failure as a miss; the caller falls back to the
// repository.
func (r *Redis) Get(ctx context.Context, kind Kind, key string, maxAge time.Duration) ([]byte, bool) {
	raw, err := r.client.Get(ctx, r.key(kind, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn(logging.Cache, logging.ExternalService, "redis get failed", map[logging.ExtraKey]any{
				logging.Path:         r.key(kind, key),
				logging.ErrorMessage: err.Error(),
			})
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if !entry.Fresh(r.schemaVersion, maxAge, r.now()) {
		return nil, false
	}
	return entry.Data, true
}

func (r *Redis) generationKey(kind Kind, key string) string {
	if r.keyPrefix == "" {
		return "gen:" + entryKey(kind, key)
	}
	return r.keyPrefix + ":gen:" + entryKey(kind, key)
}

// Generation reads the key's invalidation counter. A failed read yields
// zero, which only makes the following Set more likely to be dropped.
func (r *Redis) Generation(ctx context.Context, kind Kind, key string) Generation {
	n, err := r.client.Get(ctx, r.generationKey(kind, key)).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn(logging.Cache, logging.ExternalService, "redis generation read failed", map[logging.ExtraKey]any{
			logging.Path:         r.generationKey(kind, key),
			logging.ErrorMessage: err.Error(),
		})
	}
	return Generation(n)
}

// Set writes the entry in a WATCH transaction on the generation counter, so
// an Invalidate that lands after gen was read wins.
func (r *Redis) Set(ctx context.Context, kind Kind, key string, gen Generation, data []byte) error {
	raw, err := json.Marshal(Entry{
		Data:          data,
		FetchedAt:     r.now(),
		SchemaVersion: r.schemaVersion,
	})
	if err != nil {
		return err
	}

	genKey := r.generationKey(kind, key)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if Generation(current) != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(kind, key), raw, 0)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (r *Redis) Invalidate(ctx context.Context, kind Kind, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(kind, key))
		pipe.Incr(ctx, r.generationKey(kind, key))
		return nil
	})
	return err
}

func (r *Redis) Close() error {
	return r.client.Close()
}
