package writethrough

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/go-redis/redis/v9"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap/errors"
)

// Sink receives the writes of committed transactions.
type Sink interface {
	Write(ctx context.Context, writes []stm.KeyValue) error
	Close() error
}

type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// RedisSink mirrors committed values into one Redis hash: the field is the address and the value is the JSON
// encoding of the primitive value.
type RedisSink struct {
	client  redisClient
	hashKey string
}

// NewRedisSink connects to the Redis server described by opts. The connection is made lazily, use Ping to check it.
func NewRedisSink(opts *goredis.Options, hashKey string) *RedisSink {
	return newRedisSink(goredis.NewClient(opts), hashKey)
}

func newRedisSink(client redisClient, hashKey string) *RedisSink {
	return &RedisSink{client: client, hashKey: hashKey}
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return errors.Trace(s.client.Ping(ctx).Err())
}

// Write stores all writes with a single HSET.
func (s *RedisSink) Write(ctx context.Context, writes []stm.KeyValue) error {
	if len(writes) == 0 {
		return nil
	}
	values := make([]interface{}, 0, 2*len(writes))
	for _, w := range writes {
		data, err := json.Marshal(w.Value)
		if err != nil {
			return errors.Annotatef(err, "encode key=%s", w.Key)
		}
		values = append(values, string(w.Key), string(data))
	}
	if err := s.client.HSet(ctx, s.hashKey, values...).Err(); err != nil {
		return errors.Annotatef(err, "redis hset key=%s", s.hashKey)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// RedisOptions builds client options from the write-through settings.
func RedisOptions(addr, password string, db int, timeout time.Duration) *goredis.Options {
	return &goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}
