package telemetry

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisObserver publishes link-layer events to a Redis pub/sub channel,
// grounded on the teacher's pkg/redis client and its
// WriteAndPublishString/Publish pipeline idiom. It also mirrors the
// latest fields of each event into a hash under the same channel name,
// the way the teacher keeps both a pub/sub feed and an HSet snapshot in
// sync for the same key.
type RedisObserver struct {
	client  *redis.Client
	ctx     context.Context
	channel string
}

// NewRedisObserver builds an Observer backed by a direct go-redis
// client. addr/password/db follow the same conventions as the CLI's
// other flags.
func NewRedisObserver(addr, password string, db int, channel string) (*RedisObserver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis for telemetry: %w", err)
	}

	return &RedisObserver{client: client, ctx: ctx, channel: channel}, nil
}

// OnEvent publishes "name field1:value1 field2:value2 ..." to the
// configured channel and mirrors the fields into a hash, both
// fire-and-forget: errors are logged, never returned, since telemetry
// must never affect protocol correctness.
func (r *RedisObserver) OnEvent(name string, fields map[string]any) {
	go func() {
		pipe := r.client.Pipeline()
		msg := name
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := fields[k]
			pipe.HSet(r.ctx, r.channel, k, fmt.Sprintf("%v", v))
			msg += fmt.Sprintf(" %s:%v", k, v)
		}
		pipe.Publish(r.ctx, r.channel, msg)

		if _, err := pipe.Exec(r.ctx); err != nil {
			log.Printf("telemetry: failed to publish %s: %v", name, err)
		}
	}()
}

// Close releases the underlying Redis client.
func (r *RedisObserver) Close() error {
	return r.client.Close()
}
