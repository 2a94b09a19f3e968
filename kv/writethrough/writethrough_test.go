package writethrough

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v9"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: make(map[string]map[string]string)}
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd {
	cmd := goredis.NewIntCmd(ctx, append([]interface{}{"hset", key}, values...)...)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	cmd.SetVal(int64(len(values) / 2))
	return cmd
}

func (f *fakeRedis) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx, "ping")
	cmd.SetVal("PONG")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func (f *fakeRedis) get(key, field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[key][field]
}

func TestRedisSinkWrite(t *testing.T) {
	client := newFakeRedis()
	sink := newRedisSink(client, "vm")
	require.Nil(t, sink.Ping(context.Background()))

	err := sink.Write(context.Background(), []stm.KeyValue{
		{Key: []byte("0x1"), Value: primitive.Scalar(3)},
		{Key: []byte("0x2"), Value: primitive.Scalars(1, 2)},
		{Key: []byte("0x3"), Value: primitive.Empty()},
	})
	require.Nil(t, err)
	assert.Equal(t, `{"U24":3}`, client.get("vm", "0x1"))
	assert.Equal(t, `{"Tup":[{"U24":1},{"U24":2}]}`, client.get("vm", "0x2"))
	assert.Equal(t, `"Empty"`, client.get("vm", "0x3"))

	require.Nil(t, sink.Write(context.Background(), nil))

	client.err = errors.New("connection refused")
	err = sink.Write(context.Background(), []stm.KeyValue{{Key: []byte("0x1"), Value: primitive.Scalar(4)}})
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	require.Nil(t, sink.Close())
	assert.True(t, client.closed)
}

// blockingSink holds every write until release is closed.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	batches [][]stm.KeyValue
}

func (s *blockingSink) Write(ctx context.Context, writes []stm.KeyValue) error {
	<-s.release
	s.mu.Lock()
	s.batches = append(s.batches, writes)
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) Close() error {
	return nil
}

func TestPublisherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	p := NewPublisher(sink, 1, time.Second)

	batch := []stm.KeyValue{{Key: []byte("k"), Value: primitive.Scalar(1)}}
	// The first batch may be taken by the worker at once, the queue holds one more.
	for i := 0; i < 10; i++ {
		p.OnCommit(batch)
	}
	p.OnCommit(nil)
	assert.True(t, p.Dropped() >= 8)

	close(sink.release)
	require.Nil(t, p.Close())
	assert.Equal(t, uint64(10)-p.Dropped(), p.Written())
	assert.Len(t, sink.batches, int(p.Written()))
}

func TestPublisherWithDriver(t *testing.T) {
	client := newFakeRedis()
	p := NewPublisher(newRedisSink(client, "vm"), 16, time.Second)
	d := stm.NewDriver(stm.NewShardedStore(4), stm.Options{Listener: p})

	for i := uint32(0); i < 5; i++ {
		_, err := stm.Run(d, func(txn *stm.Attempt) (struct{}, error) {
			txn.Write([]byte("counter"), primitive.Scalar(i))
			return struct{}{}, nil
		})
		require.Nil(t, err)
	}
	require.Nil(t, p.Close())

	assert.Equal(t, uint64(5), p.Written())
	assert.Equal(t, uint64(0), p.Dropped())
	assert.Equal(t, `{"U24":4}`, client.get("vm", "counter"))
}
