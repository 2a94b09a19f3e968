package stm

import (
	"bytes"
	"sort"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/stm/latches"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
)

// Attempt is one speculative execution of a transaction body against a Store. It records what the body read (and
// at which version) and buffers what it wrote; nothing becomes visible to other attempts until Commit succeeds.
// An Attempt is owned by a single goroutine and is discarded after Commit, whatever the outcome.
type Attempt struct {
	store Store
	// Keyed by string(key). The first read of a key wins.
	readSet map[string]StoredValue
	// Keyed by string(key). The last write of a key wins.
	writeSet map[string]primitive.Value
	// Optional, serializes validation and apply of overlapping commits.
	latches *latches.Latches
	// Time spent waiting on store reads.
	readTime time.Duration
	finished bool
}

// NewAttempt creates an attempt reading from and committing to store.
func NewAttempt(store Store) *Attempt {
	return &Attempt{
		store:    store,
		readSet:  make(map[string]StoredValue),
		writeSet: make(map[string]primitive.Value),
	}
}

// Read returns the value of key as seen by this attempt. A value written earlier in the same attempt is returned
// without touching the store. Otherwise the store is queried and, if the key exists, its value and version are
// recorded in the read set. A key which does not exist is not recorded.
func (txn *Attempt) Read(key []byte) (primitive.Value, bool) {
	if v, ok := txn.writeSet[string(key)]; ok {
		return v, true
	}

	start := time.Now()
	sv, ok := txn.store.Get(key)
	txn.readTime += time.Since(start)
	if !ok {
		return primitive.Value{}, false
	}
	if _, seen := txn.readSet[string(key)]; !seen {
		txn.readSet[string(key)] = sv
	}
	return sv.Value, true
}

// Write buffers value for key. It has no effect on the store until Commit.
func (txn *Attempt) Write(key []byte, value primitive.Value) {
	txn.writeSet[string(key)] = value
}

// ReadVersion returns the version recorded when key was first read by this attempt.
func (txn *Attempt) ReadVersion(key []byte) (Version, bool) {
	sv, ok := txn.readSet[string(key)]
	return sv.Version, ok
}

// Writes returns the buffered writes ordered by key.
func (txn *Attempt) Writes() []KeyValue {
	writes := make([]KeyValue, 0, len(txn.writeSet))
	for k, v := range txn.writeSet {
		writes = append(writes, KeyValue{Key: []byte(k), Value: v})
	}
	sort.Slice(writes, func(i, j int) bool {
		return bytes.Compare(writes[i].Key, writes[j].Key) < 0
	})
	return writes
}

// ReadOnly is true if the attempt has buffered no writes.
func (txn *Attempt) ReadOnly() bool {
	return len(txn.writeSet) == 0
}

// ReadTime returns the time this attempt has spent reading from the store.
func (txn *Attempt) ReadTime() time.Duration {
	return txn.readTime
}

// keys returns every key this attempt read or wrote, without duplicates.
func (txn *Attempt) keys() [][]byte {
	keys := make([][]byte, 0, len(txn.readSet)+len(txn.writeSet))
	for k := range txn.readSet {
		keys = append(keys, []byte(k))
	}
	for k := range txn.writeSet {
		if _, ok := txn.readSet[k]; !ok {
			keys = append(keys, []byte(k))
		}
	}
	return keys
}
