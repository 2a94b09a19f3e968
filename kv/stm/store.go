package stm

import (
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap/errors"
)

// Version is a per-key counter. A key that has never been written is implicitly at version 0, the first committed
// write makes it 1.
type Version uint64

// StoredValue is a value together with the version at which it became current.
type StoredValue struct {
	Value   primitive.Value
	Version Version
}

// KeyValue is a key paired with a value, used to hand committed writes to listeners.
type KeyValue struct {
	Key   []byte
	Value primitive.Value
}

// Store is the shared versioned memory. Get, Set and Bump are each atomic and safe for any number of concurrent
// callers, but there is no atomicity across keys, nor between a Get and a later Set of the same key. Callers which
// need that re-check the version (see Attempt.Commit).
type Store interface {
	// Get returns the current value and version of key. ok is false if key has never been written.
	Get(key []byte) (sv StoredValue, ok bool)
	// Set unconditionally overwrites the entry for key.
	Set(key []byte, value primitive.Value, version Version)
	// Bump stores value at the current version of key plus one and returns that version. Concurrent Bumps of a key
	// never produce the same version twice.
	Bump(key []byte, value primitive.Value) Version
	// Len returns the number of keys in the store.
	Len() int
}

// Engine names accepted by NewStore.
const (
	EngineSharded = "sharded"
	EngineBTree   = "btree"
)

// DefaultShardCount is the number of lock stripes of a ShardedStore when none is given.
const DefaultShardCount = 256

// NewStore creates an empty store using the named engine.
func NewStore(engine string, shardCount int) (Store, error) {
	switch engine {
	case EngineSharded, "":
		return NewShardedStore(shardCount), nil
	case EngineBTree:
		return NewBTreeStore(), nil
	}
	return nil, errors.Errorf("unknown storage engine %q", engine)
}

// Key converts an address such as "0x42" into a store key.
func Key(addr string) []byte {
	return []byte(addr)
}
