package stm

import (
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
)

// ShardedStore is a Store split into lock-striped shards. Keys are spread over the shards by their farm hash, so
// callers touching different keys rarely contend on the same lock.
type ShardedStore struct {
	shards []*storeShard
}

type storeShard struct {
	sync.RWMutex
	items map[string]StoredValue
}

// NewShardedStore creates an empty store with shardCount stripes. A non-positive count uses DefaultShardCount.
func NewShardedStore(shardCount int) *ShardedStore {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	s := &ShardedStore{shards: make([]*storeShard, shardCount)}
	for i := range s.shards {
		s.shards[i] = &storeShard{items: make(map[string]StoredValue)}
	}
	return s
}

func (s *ShardedStore) shard(key []byte) *storeShard {
	return s.shards[farm.Fingerprint32(key)%uint32(len(s.shards))]
}

func (s *ShardedStore) Get(key []byte) (StoredValue, bool) {
	shard := s.shard(key)
	shard.RLock()
	sv, ok := shard.items[string(key)]
	shard.RUnlock()
	return sv, ok
}

func (s *ShardedStore) Set(key []byte, value primitive.Value, version Version) {
	shard := s.shard(key)
	shard.Lock()
	shard.items[string(key)] = StoredValue{Value: value, Version: version}
	shard.Unlock()
}

func (s *ShardedStore) Bump(key []byte, value primitive.Value) Version {
	shard := s.shard(key)
	shard.Lock()
	defer shard.Unlock()
	version := shard.items[string(key)].Version + 1
	shard.items[string(key)] = StoredValue{Value: value, Version: version}
	return version
}

func (s *ShardedStore) Len() int {
	n := 0
	for _, shard := range s.shards {
		shard.RLock()
		n += len(shard.items)
		shard.RUnlock()
	}
	return n
}
